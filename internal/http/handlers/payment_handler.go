package handlers

import (
	"github.com/collab-platform/backend/internal/http/dto"
	"github.com/collab-platform/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	negService *services.NegotiationService
	log        *zap.Logger
}

func NewPaymentHandler(negService *services.NegotiationService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{negService: negService, log: log}
}

// Callback handles the post-checkout confirmation. It is safe to retry:
// a duplicate confirmation of a verified order returns the current state.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var req dto.PaymentCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "order id, payment id and signature are required"})
	}

	neg, err := h.negService.ConfirmPayment(c.Context(), req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		h.log.Warn("payment confirmation rejected",
			zap.String("gateway_order_id", req.RazorpayOrderID),
			zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: neg})
}

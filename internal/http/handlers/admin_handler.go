package handlers

import (
	"github.com/collab-platform/backend/internal/http/dto"
	"github.com/collab-platform/backend/internal/middleware"
	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminHandler is the settlement console: payout queue, fund confirmation,
// refunds and commission management. Routes are behind AdminMiddleware.
type AdminHandler struct {
	negService *services.NegotiationService
	commission *services.CommissionService
	log        *zap.Logger
}

func NewAdminHandler(negService *services.NegotiationService, commission *services.CommissionService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{negService: negService, commission: commission, log: log}
}

// Queue lists negotiations waiting on an admin, defaulting to the payout
// queue.
func (h *AdminHandler) Queue(c *fiber.Ctx) error {
	state := c.Query("flow_state", models.StateAdminPaymentPending)
	limit, offset := paging(c)

	negs, err := h.negService.ListByState(c.Context(), state, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: negs})
}

// Act runs an admin settlement action (receive_funds, release_advance,
// release_final, refund, close, force_close).
func (h *AdminHandler) Act(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid negotiation id"})
	}

	var req dto.ActRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "action is required"})
	}

	neg, msg, err := h.negService.Apply(c.Context(), id, middleware.GetUserID(c), true, services.ActionInput{
		Action:      req.Action,
		AmountPaise: req.AmountPaise,
		Note:        req.Note,
		Reason:      req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.TransitionResponse{Negotiation: neg, Message: msg}})
}

type setCommissionRequest struct {
	CommissionBPS int `json:"commission_bps"`
}

func (h *AdminHandler) SetCommission(c *fiber.Ctx) error {
	var req setCommissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	setting, err := h.commission.SetBPS(c.Context(), req.CommissionBPS)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: setting})
}

func (h *AdminHandler) GetCommission(c *fiber.Ctx) error {
	bps := h.commission.CurrentBPS(c.Context())
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"commission_bps": bps}})
}

package handlers

import (
	"errors"
	"strconv"

	"github.com/collab-platform/backend/internal/http/dto"
	"github.com/collab-platform/backend/internal/middleware"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/collab-platform/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NegotiationHandler struct {
	negService *services.NegotiationService
	log        *zap.Logger
}

func NewNegotiationHandler(negService *services.NegotiationService, log *zap.Logger) *NegotiationHandler {
	return &NegotiationHandler{negService: negService, log: log}
}

func (h *NegotiationHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateNegotiationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid provider_id"})
	}
	listingID, err := parseOptionalUUID(req.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing_id"})
	}
	openCallID, err := parseOptionalUUID(req.OpenCallID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid open_call_id"})
	}

	neg, err := h.negService.CreateNegotiation(c.Context(), services.CreateNegotiationInput{
		RequesterID: middleware.GetUserID(c),
		ProviderID:  providerID,
		ListingID:   listingID,
		OpenCallID:  openCallID,
		IntroNote:   req.IntroNote,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: neg})
}

func (h *NegotiationHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid negotiation id"})
	}

	neg, err := h.negService.Get(c.Context(), id, middleware.GetUserID(c), middleware.GetIsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: neg})
}

func (h *NegotiationHandler) List(c *fiber.Ctx) error {
	limit, offset := paging(c)
	negs, err := h.negService.ListForUser(c.Context(), middleware.GetUserID(c), c.Query("flow_state"), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: negs})
}

func (h *NegotiationHandler) Messages(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid negotiation id"})
	}

	limit, offset := paging(c)
	msgs, err := h.negService.Messages(c.Context(), id, middleware.GetUserID(c), middleware.GetIsAdmin(c), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: msgs})
}

func (h *NegotiationHandler) Rounds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid negotiation id"})
	}

	rounds, err := h.negService.Rounds(c.Context(), id, middleware.GetUserID(c), middleware.GetIsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rounds})
}

func (h *NegotiationHandler) Ledger(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid negotiation id"})
	}

	entries, err := h.negService.Ledger(c.Context(), id, middleware.GetUserID(c), middleware.GetIsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

// Act dispatches a workflow action against the negotiation.
func (h *NegotiationHandler) Act(c *fiber.Ctx) error {
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

	neg, msg, err := h.negService.Apply(c.Context(), id, middleware.GetUserID(c), middleware.GetIsAdmin(c), services.ActionInput{
		Action:       req.Action,
		AmountPaise:  req.AmountPaise,
		Note:         req.Note,
		Deliverables: req.Deliverables,
		Reason:       req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.TransitionResponse{Negotiation: neg, Message: msg}})
}

func paging(c *fiber.Ctx) (int, int) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnsupportedAction),
		errors.Is(err, services.ErrAmountResolution),
		errors.Is(err, services.ErrInvalidSignature):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrIllegalTransition),
		errors.Is(err, services.ErrDuplicatePayment),
		errors.Is(err, repositories.ErrVersionConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrGateway):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}

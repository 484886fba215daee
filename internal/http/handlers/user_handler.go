package handlers

import (
	"github.com/collab-platform/backend/internal/http/dto"
	"github.com/collab-platform/backend/internal/middleware"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo *repositories.UserRepo
	log      *zap.Logger
}

func NewUserHandler(userRepo *repositories.UserRepo, log *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByID(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	if err := h.userRepo.UpdateLastActive(c.Context(), middleware.GetUserID(c)); err != nil {
		h.log.Warn("last-active update failed", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// UpdateDeviceToken registers the push token for the calling device.
func (h *UserHandler) UpdateDeviceToken(c *fiber.Ctx) error {
	var req dto.UpdateDeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.DeviceToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "device_token is required"})
	}
	if err := h.userRepo.UpdateDeviceToken(c.Context(), middleware.GetUserID(c), req.DeviceToken); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not store device token"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

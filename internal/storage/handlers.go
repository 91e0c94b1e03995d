package storage

import (
	"backend-nearvibe/internal/auth"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, log *zap.Logger) {
	r.Post("/uploads", authMiddleware, func(c *fiber.Ctx) error {
		if !svc.Enabled() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "uploads are not configured")
		}
		var req UploadRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid upload payload")
		}
		upload, err := svc.CreateUpload(c.Context(), auth.ActingUser(c), req)
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to prepare upload")
		}
		return c.Status(fiber.StatusCreated).JSON(upload)
	})
}

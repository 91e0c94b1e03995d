package journal

import (
	"backend-nearvibe/internal/auth"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, optionalAuth fiber.Handler, log *zap.Logger) {
	r.Get("/", optionalAuth, func(c *fiber.Ctx) error {
		userID := c.Query("userId")
		if userID == "" {
			userID = auth.ActingUser(c)
		}
		logs, err := svc.ForUser(c.Context(), userID)
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to fetch logs")
		}
		return c.JSON(logs)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid log payload")
		}
		entry, err := svc.Create(c.Context(), auth.ActingUser(c), req)
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to save log")
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})
}

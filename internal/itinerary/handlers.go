package itinerary

import (
	"backend-nearvibe/internal/auth"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RegisterRoutes mounts itinerary routes. optionalAuth identifies the caller
// when a token is present; authMiddleware rejects anonymous calls.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, optionalAuth fiber.Handler, log *zap.Logger) {
	r.Get("/", optionalAuth, func(c *fiber.Ctx) error {
		list, err := svc.List(c.Context(), auth.ActingUser(c), c.Query("public") == "true")
		if err != nil {
			return apperr.ToFiber(log, err, errFetchMessage)
		}
		return c.JSON(list)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid itinerary payload")
		}
		it, err := svc.Create(c.Context(), auth.ActingUser(c), req)
		if err != nil {
			return apperr.ToFiber(log, err, errSaveMessage)
		}
		return c.Status(fiber.StatusCreated).JSON(it)
	})

	r.Get("/:id", optionalAuth, func(c *fiber.Ctx) error {
		it, err := svc.Get(c.Context(), auth.ActingUser(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to fetch itinerary")
		}
		return c.JSON(it)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid itinerary payload")
		}
		it, err := svc.Update(c.Context(), auth.ActingUser(c), c.Params("id"), req)
		if err != nil {
			return apperr.ToFiber(log, err, errSaveMessage)
		}
		return c.JSON(it)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), auth.ActingUser(c), c.Params("id")); err != nil {
			return apperr.ToFiber(log, err, errDeleteMessage)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"backend-nearvibe/internal/shared/apperr"
)

func RegisterRoutes(r fiber.Router, svc *Service, log *zap.Logger) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Signup(c.Context(), req)
		if err != nil {
			return apperr.ToFiber(log, err, "Signup failed")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User created", "user": user, "tokens": tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		user, tokens, err := svc.Login(c.Context(), req)
		if err != nil {
			return apperr.ToFiber(log, err, "Login failed")
		}
		return c.JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refreshToken required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return apperr.ToFiber(log, err, "Refresh failed")
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return apperr.ToFiber(log, err, "Refresh failed")
		}
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		return c.JSON(fiber.Map{"userId": userID})
	})
}

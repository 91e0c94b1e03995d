package adventure

import (
	"backend-nearvibe/internal/auth"
	"backend-nearvibe/internal/filter"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, log *zap.Logger) {
	r.Get("/", func(c *fiber.Ctx) error {
		q, err := filter.ParseQuery(func(key string) string { return c.Query(key) })
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		page, err := svc.Discover(c.Context(), q, c.QueryInt("page", 1), c.QueryInt("limit", DefaultPageSize))
		if err != nil {
			return apperr.ToFiber(log, err, errFetchMessage)
		}
		return c.JSON(page)
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		p, err := filter.ParsePoint(c.Query("lat"), c.Query("lng"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		results, err := svc.Nearby(c.Context(), p.Lat, p.Lng)
		if err != nil {
			return apperr.ToFiber(log, err, errFetchMessage)
		}
		return c.JSON(results)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure payload")
		}
		a, err := svc.Create(c.Context(), auth.ActingUser(c), req)
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to create adventure")
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		a, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to fetch adventure")
		}
		return c.JSON(a)
	})

	r.Post("/:id/reviews", authMiddleware, func(c *fiber.Ctx) error {
		var req ReviewInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid review payload")
		}
		review, err := svc.AddReview(c.Context(), auth.ActingUser(c), c.Params("id"), req)
		if err != nil {
			return apperr.ToFiber(log, err, errReviewMessage)
		}
		return c.Status(fiber.StatusCreated).JSON(review)
	})

	r.Get("/:id/reviews", func(c *fiber.Ctx) error {
		reviews, err := svc.Reviews(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(log, err, "Failed to fetch reviews")
		}
		return c.JSON(reviews)
	})
}

// Package apperr holds the error kinds shared by every HTTP-facing service
// and their mapping to fiber errors.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("unauthorized")
	ErrOwnership  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrUpstream   = errors.New("upstream failure")
)

// Error carries a client-safe message next to its kind. Cause is logged,
// never rendered.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

func Auth(msg string) error { return &Error{Kind: ErrAuth, Message: msg} }

func Ownership(msg string) error { return &Error{Kind: ErrOwnership, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// Upstream wraps a persistence or dependency failure behind a generic message.
func Upstream(msg string, cause error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Cause: cause}
}

func status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrOwnership):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ToFiber converts err into a *fiber.Error. Unclassified errors and upstream
// failures are logged and replaced by fallback.
func ToFiber(log *zap.Logger, err error, fallback string) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}

	code := status(err)
	var ae *Error
	if !errors.As(err, &ae) || code == fiber.StatusInternalServerError {
		if log != nil {
			log.Error(fallback, zap.Error(err))
		}
		return fiber.NewError(fiber.StatusInternalServerError, fallback)
	}
	return fiber.NewError(code, ae.Message)
}

// Handler renders every error as {"error": message}.
func Handler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

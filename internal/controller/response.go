package controller

import (
	"errors"

	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatus maps service errors onto HTTP statuses.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrNotificationMissing):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Failure writes err with its mapped status.
func Failure(ctx *fiber.Ctx, err error) error {
	return serverutils.Fail(ctx, ErrorStatus(err), err.Error())
}

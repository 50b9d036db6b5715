package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/storage"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

func paramInt64(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInsufficientTokens):
		return fiber.StatusPaymentRequired
	case errors.Is(err, service.ErrNotOwner):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrTargetUnavailable), errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, storage.ErrInvalid), errors.Is(err, models.ErrInvalidSchedule):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrPublishFailed):
		return fiber.StatusBadGateway
	}

	var serr *storage.Error
	if errors.As(err, &serr) && serr.Kind == storage.KindConnection {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func outcomeStatus(kind storage.Kind) int {
	switch kind {
	case storage.KindInvalid:
		return fiber.StatusBadRequest
	case storage.KindConnection:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

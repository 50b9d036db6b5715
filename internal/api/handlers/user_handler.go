package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type UserHandler struct {
	users  service.UserService
	ledger service.LedgerService
}

func NewUserHandler(users service.UserService, ledger service.LedgerService) *UserHandler {
	return &UserHandler{users: users, ledger: ledger}
}

// GetUserInfo returns the profile with the current token balance. Reading
// the balance grants the welcome tokens on first access.
func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	user, err := h.users.GetUserInfo(c.Context(), userID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	balance, err := h.ledger.Balance(c.Context(), userID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": "Unable to read balance",
		})
	}

	return c.JSON(transfer.UserInfo{
		ID:             user.ID,
		Username:       user.Username,
		TelegramChatID: user.TelegramChatID,
		Balance:        balance,
		LowBalance:     balance < h.ledger.Pricing().Text,
		MemberSince:    user.CreatedAt,
	})
}

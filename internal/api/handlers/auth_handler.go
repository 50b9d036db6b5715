package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type AuthHandler struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService) *AuthHandler {
	return &AuthHandler{s: service, cfg: cfg}
}

// IssueToken is called by the chat bot on behalf of a Telegram user.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req transfer.TokenRequest
	if err := c.BodyParser(&req); err != nil || req.ChatID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chat_id is required",
		})
	}

	token, userID, err := h.s.IssueToken(c.Context(), c.Get("X-Bot-Secret"), req.ChatID, req.Username)
	if err != nil {
		if errors.Is(err, service.ErrBadBotSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid bot secret",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.TokenDuration),
	})

	return c.JSON(transfer.TokenResponse{Token: token, UserID: userID})
}

package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type PaymentHandler struct {
	s   service.PaymentService
	cfg config.Config
}

func NewPaymentHandler(cfg config.Config, service service.PaymentService) *PaymentHandler {
	return &PaymentHandler{s: service, cfg: cfg}
}

func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	secret := c.Get("X-Webhook-Secret")
	if h.cfg.PaymentWebhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.PaymentWebhookSecret)) != 1 {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var requestData transfer.PaymentEvent
	if err := c.BodyParser(&requestData); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).SendString("invalid payload")
	}

	credited, err := h.s.HandlePayment(c.Context(), &requestData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}

	return c.JSON(fiber.Map{"credited": credited})
}

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type TokenHandler struct {
	ledger service.LedgerService
	gen    service.GenerationService
}

func NewTokenHandler(ledger service.LedgerService, gen service.GenerationService) *TokenHandler {
	return &TokenHandler{ledger: ledger, gen: gen}
}

func (h *TokenHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.ledger.Balance(c.Context(), GetUserID(c))
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": "Unable to read balance",
		})
	}

	p := h.ledger.Pricing()
	return c.JSON(transfer.BalanceInfo{
		Balance: balance,
		Prices: map[string]int64{
			string(service.OpText):     p.Text,
			string(service.OpImage):    p.Image,
			string(service.OpKeywords): p.Keywords,
		},
		AsOf: time.Now().UTC(),
	})
}

func (h *TokenHandler) Generate(c *fiber.Ctx) error {
	var req transfer.GenerateRequest
	if err := c.BodyParser(&req); err != nil || req.CategoryID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "category_id is required",
		})
	}

	resp, err := h.gen.Generate(c.Context(), GetUserID(c), &req)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(resp)
}

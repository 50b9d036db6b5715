package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type PublishHandler struct {
	s      service.PublishService
	ledger service.LedgerService
}

func NewPublishHandler(s service.PublishService, ledger service.LedgerService) *PublishHandler {
	return &PublishHandler{s: s, ledger: ledger}
}

func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	platformType := models.PlatformType(req.PlatformType)
	if req.CategoryID == 0 || req.PlatformID == 0 || !platformType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "category_id, platform_type and platform_id are required",
		})
	}

	target := service.Target{CategoryID: req.CategoryID, PlatformType: platformType, PlatformID: req.PlatformID}
	out, err := h.s.PublishNow(c.Context(), userID, target, req.SubTarget)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp := transfer.PublishResponse{Success: true, URL: out.URL, TokensSpent: out.TokensSpent}
	if balance, err := h.ledger.Balance(c.Context(), userID); err == nil {
		resp.Balance = balance
	}
	return c.JSON(resp)
}

func (h *PublishHandler) ListPublications(c *fiber.Ctx) error {
	filter := models.PublishRecordFilter{UserID: GetUserID(c)}

	if p := c.Query("platform"); p != "" {
		filter.PlatformType = models.PlatformType(p)
		if !filter.PlatformType.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown platform"})
		}
	}
	if s := c.Query("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "success must be true or false"})
		}
		filter.Success = &success
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since must be RFC 3339"})
		}
		filter.Since = since
	}
	if l := c.QueryInt("limit"); l > 0 {
		filter.Limit = uint64(l)
	}

	records, err := h.s.History(c.Context(), filter)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": "Unable to list publications",
		})
	}
	if records == nil {
		records = []*models.PublishRecord{}
	}
	return c.JSON(records)
}

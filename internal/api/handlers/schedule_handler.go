package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type ScheduleHandler struct {
	s  service.ScheduleService
	n  service.NotificationService
	as service.AccountService
}

func NewScheduleHandler(s service.ScheduleService, n service.NotificationService, as service.AccountService) *ScheduleHandler {
	return &ScheduleHandler{s: s, n: n, as: as}
}

type scheduleKey struct {
	categoryID   int64
	platformType models.PlatformType
	platformID   int64
}

// ownedKey parses /:category/:platform/:instance and checks that the user
// owns both ends. A non-zero status means the request must be rejected.
func (h *ScheduleHandler) ownedKey(c *fiber.Ctx) (scheduleKey, int, string) {
	var key scheduleKey
	var err error

	if key.categoryID, err = paramInt64(c, "category"); err != nil {
		return key, fiber.StatusBadRequest, "invalid category id"
	}
	key.platformType = models.PlatformType(c.Params("platform"))
	if !key.platformType.Valid() {
		return key, fiber.StatusBadRequest, "unknown platform"
	}
	if key.platformID, err = paramInt64(c, "instance"); err != nil {
		return key, fiber.StatusBadRequest, "invalid platform instance id"
	}

	owns, err := h.as.OwnsTarget(c.Context(), GetUserID(c), key.categoryID, key.platformType, key.platformID)
	if err != nil {
		return key, errorStatus(err), "unable to check ownership"
	}
	if !owns {
		return key, fiber.StatusNotFound, "category or platform instance not found"
	}
	return key, 0, ""
}

func (h *ScheduleHandler) GetSchedule(c *fiber.Ctx) error {
	key, status, msg := h.ownedKey(c)
	if status != 0 {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	out := h.s.Get(c.Context(), key.categoryID, key.platformType, key.platformID)
	if !out.OK() {
		return c.Status(outcomeStatus(out.Kind)).JSON(fiber.Map{"error": "unable to load schedule"})
	}
	if out.Value == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "schedule not configured"})
	}
	return c.JSON(out.Value)
}

func (h *ScheduleHandler) UpdateSchedule(c *fiber.Ctx) error {
	key, status, msg := h.ownedKey(c)
	if status != 0 {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	var update transfer.ScheduleUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	schedule := &models.PlatformSchedule{
		Enabled:     update.Enabled,
		Days:        update.Days,
		Times:       update.Times,
		PostsPerDay: update.PostsPerDay,
		Frequency:   models.Frequency(update.Frequency),
		SubTargets:  update.SubTargets,
	}
	out := h.s.Save(c.Context(), key.categoryID, key.platformType, key.platformID, schedule)
	if !out.OK() {
		return c.Status(outcomeStatus(out.Kind)).JSON(fiber.Map{
			"error": out.Err().Error(),
		})
	}
	return c.JSON(schedule)
}

func (h *ScheduleHandler) GetNotification(c *fiber.Ctx) error {
	kind := models.NotificationKind(c.Params("kind"))
	if !kind.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown notification kind"})
	}

	out := h.n.Get(c.Context(), GetUserID(c), kind)
	if !out.OK() {
		return c.Status(outcomeStatus(out.Kind)).JSON(fiber.Map{"error": "unable to load notification settings"})
	}
	if out.Value == nil {
		return c.JSON(&models.NotificationSchedule{UserID: GetUserID(c), Kind: kind})
	}
	return c.JSON(out.Value)
}

func (h *ScheduleHandler) UpdateNotification(c *fiber.Ctx) error {
	kind := models.NotificationKind(c.Params("kind"))

	var update transfer.NotificationUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	n := &models.NotificationSchedule{Enabled: update.Enabled, Days: update.Days, Times: update.Times}
	out := h.n.Save(c.Context(), GetUserID(c), kind, n)
	if !out.OK() {
		return c.Status(outcomeStatus(out.Kind)).JSON(fiber.Map{
			"error": out.Err().Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

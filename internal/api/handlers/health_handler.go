package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/scheduler"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db         Pinger
	dispatcher *scheduler.Dispatcher
}

func NewHealthHandler(db Pinger, dispatcher *scheduler.Dispatcher) *HealthHandler {
	return &HealthHandler{db: db, dispatcher: dispatcher}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	db := "ok"
	if err := h.db.PingContext(ctx); err != nil {
		status, db = fiber.StatusServiceUnavailable, err.Error()
	}

	body := fiber.Map{"database": db}
	if h.dispatcher != nil {
		body["scheduler"] = h.dispatcher.State().String()
	}
	return c.Status(status).JSON(body)
}

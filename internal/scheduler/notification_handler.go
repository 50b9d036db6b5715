package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
)

// NotificationEnqueuer hands a due notification to the worker queue. It
// reports false when the notification was already queued for that minute.
type NotificationEnqueuer interface {
	EnqueueNotification(ctx context.Context, userID int64, kind models.NotificationKind, at time.Time) (bool, error)
}

type NotificationHandler struct {
	notifications service.NotificationService
	queue         NotificationEnqueuer
}

func NewNotificationHandler(notifications service.NotificationService, queue NotificationEnqueuer) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, queue: queue}
}

func (h *NotificationHandler) Name() string { return "notification" }

func (h *NotificationHandler) HandleMinute(ctx context.Context, m Minute) (int, error) {
	due := h.notifications.ListDue(ctx, m.Weekday, m.HHMM)
	if !due.OK() {
		return 0, due.Err()
	}

	var errs []error
	for _, n := range due.Value {
		if _, err := h.queue.EnqueueNotification(ctx, n.UserID, n.Kind, m.At); err != nil {
			errs = append(errs, err)
		}
	}
	return len(due.Value), errors.Join(errs...)
}

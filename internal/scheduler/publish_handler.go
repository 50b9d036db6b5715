package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
)

// PublishHandler runs a publish job for every schedule due in the minute,
// one after another in storage order.
type PublishHandler struct {
	schedules service.ScheduleService
	publisher service.PublishService
	clock     clock.Clock
	jobDelay  time.Duration
}

func NewPublishHandler(schedules service.ScheduleService, publisher service.PublishService, clk clock.Clock, jobDelay time.Duration) *PublishHandler {
	return &PublishHandler{schedules: schedules, publisher: publisher, clock: clk, jobDelay: jobDelay}
}

func (h *PublishHandler) Name() string { return "publish" }

func (h *PublishHandler) HandleMinute(ctx context.Context, m Minute) (int, error) {
	due := h.schedules.ListDue(ctx, m.Weekday, m.HHMM)
	if !due.OK() {
		return 0, due.Err()
	}
	if len(due.Value) == 0 {
		return 0, nil
	}
	slog.Info("schedules due", "minute", m.Key, "count", len(due.Value))

	// Jobs outlive a stop request; only the gap between them is cancellable.
	jobCtx := context.WithoutCancel(ctx)

	for i, s := range due.Value {
		if i > 0 && h.jobDelay > 0 {
			select {
			case <-ctx.Done():
				return i, nil
			case <-h.clock.After(h.jobDelay):
			}
		}

		out := h.publisher.Publish(jobCtx, service.Target{
			CategoryID:   s.CategoryID,
			PlatformType: s.PlatformType,
			PlatformID:   s.PlatformID,
		}, service.TriggerInfo{
			Trigger:    models.TriggerScheduled,
			ScheduleID: s.ID,
			Minute:     m.At,
			SubTarget:  s.SubTargetFor(m.HHMM),
		})
		slog.Debug("scheduled publish finished", "schedule_id", s.ID, "status", out.Status)
	}
	return len(due.Value), nil
}

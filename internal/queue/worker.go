package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleNotifyTask(ctx context.Context, task *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if !payload.Kind.Valid() {
		return fmt.Errorf("unknown notification kind %q: %w", payload.Kind, asynq.SkipRetry)
	}

	sent, err := j.ns.Deliver(ctx, payload.UserID, payload.Kind, payload.At)
	if err != nil {
		slog.Error("notification failed", "user_id", payload.UserID, "kind", payload.Kind, "error", err)
		return err
	}
	if !sent {
		slog.Debug("nothing to notify", "user_id", payload.UserID, "kind", payload.Kind)
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/redis/go-redis/v9"
)

const dedupTTL = 2 * time.Hour

// TaskEnqueuer is the part of *asynq.Client the enqueuer needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer queues notification tasks at most once per user, kind and
// minute across every running instance.
type Enqueuer struct {
	client TaskEnqueuer
	rdb    redis.UniversalClient
}

func NewEnqueuer(client TaskEnqueuer, rdb redis.UniversalClient) *Enqueuer {
	return &Enqueuer{client: client, rdb: rdb}
}

func dedupKey(userID int64, kind models.NotificationKind, at time.Time) string {
	return fmt.Sprintf("autopost:notify:%d:%s:%s", userID, kind, models.MinuteKey(at.UTC()))
}

func (e *Enqueuer) EnqueueNotification(ctx context.Context, userID int64, kind models.NotificationKind, at time.Time) (bool, error) {
	key := dedupKey(userID, kind, at)
	fresh, err := e.rdb.SetNX(ctx, key, "1", dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup notification: %w", err)
	}
	if !fresh {
		return false, nil
	}

	taskPayload, err := json.Marshal(NotifyPayload{UserID: userID, Kind: kind, At: at})
	if err != nil {
		return false, err
	}

	task := asynq.NewTask(TaskTypeNotify, taskPayload)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(time.Minute)); err != nil {
		// Let another tick or instance retry.
		e.rdb.Del(context.WithoutCancel(ctx), key)
		return false, err
	}

	slog.Info("notification queued", "user_id", userID, "kind", kind)
	return true, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t", Type: task.Type()}, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

var at = time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)

func TestEnqueuer_DeduplicatesAcrossInstances(t *testing.T) {
	_, rdb := newRedis(t)
	clientA, clientB := &fakeClient{}, &fakeClient{}
	a, b := NewEnqueuer(clientA, rdb), NewEnqueuer(clientB, rdb)
	ctx := context.Background()

	queued, err := a.EnqueueNotification(ctx, 7, models.NotificationDigest, at)
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = b.EnqueueNotification(ctx, 7, models.NotificationDigest, at)
	require.NoError(t, err)
	assert.False(t, queued)

	queued, err = b.EnqueueNotification(ctx, 7, models.NotificationLowBalance, at)
	require.NoError(t, err)
	assert.True(t, queued)

	require.Len(t, clientA.tasks, 1)
	assert.Equal(t, TaskTypeNotify, clientA.tasks[0].Type())

	var payload NotifyPayload
	require.NoError(t, json.Unmarshal(clientA.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(7), payload.UserID)
	assert.Equal(t, models.NotificationDigest, payload.Kind)
	assert.True(t, at.Equal(payload.At))
}

func TestEnqueuer_FailedEnqueueReleasesKey(t *testing.T) {
	mr, rdb := newRedis(t)
	client := &fakeClient{err: errors.New("redis gone")}
	e := NewEnqueuer(client, rdb)

	_, err := e.EnqueueNotification(context.Background(), 7, models.NotificationDigest, at)
	require.Error(t, err)
	assert.False(t, mr.Exists(dedupKey(7, models.NotificationDigest, at)))
}

func TestEnqueuer_KeyExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	e := NewEnqueuer(&fakeClient{}, rdb)
	ctx := context.Background()

	_, err := e.EnqueueNotification(ctx, 7, models.NotificationDigest, at)
	require.NoError(t, err)

	mr.FastForward(dedupTTL + time.Second)
	queued, err := e.EnqueueNotification(ctx, 7, models.NotificationDigest, at)
	require.NoError(t, err)
	assert.True(t, queued)
}

type fakeNotifications struct {
	service.NotificationService
	delivered []NotifyPayload
	err       error
}

func (f *fakeNotifications) Deliver(ctx context.Context, userID int64, kind models.NotificationKind, at time.Time) (bool, error) {
	f.delivered = append(f.delivered, NotifyPayload{UserID: userID, Kind: kind, At: at})
	return f.err == nil, f.err
}

func TestQueue_HandleNotifyTask(t *testing.T) {
	ns := &fakeNotifications{}
	q := NewQueue(ns)

	payload, err := json.Marshal(NotifyPayload{UserID: 3, Kind: models.NotificationLowBalance, At: at})
	require.NoError(t, err)

	require.NoError(t, q.HandleNotifyTask(context.Background(), asynq.NewTask(TaskTypeNotify, payload)))
	require.Len(t, ns.delivered, 1)
	assert.Equal(t, int64(3), ns.delivered[0].UserID)
}

func TestQueue_BadPayloadSkipsRetry(t *testing.T) {
	q := NewQueue(&fakeNotifications{})

	err := q.HandleNotifyTask(context.Background(), asynq.NewTask(TaskTypeNotify, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(NotifyPayload{UserID: 3, Kind: "weekly"})
	err = q.HandleNotifyTask(context.Background(), asynq.NewTask(TaskTypeNotify, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestQueue_DeliveryErrorIsRetried(t *testing.T) {
	q := NewQueue(&fakeNotifications{err: errors.New("telegram down")})
	payload, _ := json.Marshal(NotifyPayload{UserID: 3, Kind: models.NotificationDigest, At: at})

	err := q.HandleNotifyTask(context.Background(), asynq.NewTask(TaskTypeNotify, payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

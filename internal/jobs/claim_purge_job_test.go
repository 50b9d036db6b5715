package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimPurgeJob_DropsOnlyExpiredClaims(t *testing.T) {
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	cr := repository.NewClaimRepository(db)
	ctx := context.Background()

	for i, age := range []time.Duration{96 * time.Hour, 80 * time.Hour, time.Hour} {
		claimedAt := now.Add(-age)
		ok, err := cr.Claim(ctx, nil, &models.PublishClaim{
			ScheduleID: int64(i + 1),
			MinuteKey:  models.MinuteKey(claimedAt),
			Owner:      "test",
			ClaimedAt:  claimedAt,
		})
		require.NoError(t, err)
		require.True(t, ok)
	}

	guard := storage.NewGuard(db, storage.GuardConfig{MaxRetries: 1, StaleAfter: time.Minute})
	job := NewClaimPurgeJob(guard, cr, clock.NewFake(now), 72*time.Hour)

	assert.Equal(t, int64(2), job.Run(ctx))
	assert.Zero(t, job.Run(ctx))

	// The surviving claim still blocks its minute.
	claimedAt := now.Add(-time.Hour)
	ok, err := cr.Claim(ctx, nil, &models.PublishClaim{ScheduleID: 3, MinuteKey: models.MinuteKey(claimedAt), Owner: "other", ClaimedAt: now})
	require.NoError(t, err)
	assert.False(t, ok)
}

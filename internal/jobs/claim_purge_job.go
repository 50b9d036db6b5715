package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

// ClaimPurgeJob drops publish claims older than the retention window. A
// claim only matters for the minute it names, so old rows are dead weight.
type ClaimPurgeJob struct {
	guard     *storage.Guard
	cr        repository.ClaimRepository
	clock     clock.Clock
	retention time.Duration
}

func NewClaimPurgeJob(guard *storage.Guard, cr repository.ClaimRepository, clk clock.Clock, retention time.Duration) *ClaimPurgeJob {
	return &ClaimPurgeJob{
		guard:     guard,
		cr:        cr,
		clock:     clk,
		retention: retention,
	}
}

func (j *ClaimPurgeJob) PurgeClaims() {
	j.Run(context.Background())
}

func (j *ClaimPurgeJob) Run(ctx context.Context) int64 {
	before := j.clock.Now().Add(-j.retention)

	out := storage.Run(ctx, j.guard, "claims.purge", func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		return j.cr.PurgeBefore(ctx, tx, before)
	})
	if !out.OK() {
		slog.Info(out.Err().Error())
		return 0
	}
	if out.Value > 0 {
		slog.Info("purged publish claims", "count", out.Value, "before", before)
	}
	return out.Value
}

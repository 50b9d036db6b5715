package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
)

type ClaimRepository interface {
	Claim(ctx context.Context, tx *sqlx.Tx, c *models.PublishClaim) (bool, error)
	PurgeBefore(ctx context.Context, tx *sqlx.Tx, before time.Time) (int64, error)
}

type claimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// Claim inserts the (schedule, minute) key. It reports false when another
// caller already holds it.
func (r *claimRepository) Claim(ctx context.Context, tx *sqlx.Tx, c *models.PublishClaim) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO publish_claims (schedule_id, minute_key, owner, claimed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (schedule_id, minute_key) DO NOTHING`)
	res, err := ext(r.db, tx).ExecContext(ctx, query, c.ScheduleID, c.MinuteKey, c.Owner, c.ClaimedAt.UTC())
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *claimRepository) PurgeBefore(ctx context.Context, tx *sqlx.Tx, before time.Time) (int64, error) {
	query := r.db.Rebind("DELETE FROM publish_claims WHERE claimed_at < ?")
	res, err := ext(r.db, tx).ExecContext(ctx, query, before.UTC())
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return res.RowsAffected()
}

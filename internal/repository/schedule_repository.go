package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
)

type ScheduleRepository interface {
	GetByKey(ctx context.Context, tx *sqlx.Tx, categoryID int64, platformType models.PlatformType, platformID int64) (*models.PlatformSchedule, bool, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, s *models.PlatformSchedule) (int64, error)
	ListDue(ctx context.Context, tx *sqlx.Tx, weekday, hhmm string) ([]*models.PlatformSchedule, error)
}

type scheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, category_id, platform_type, platform_id, enabled, days, times,
	posts_per_day, frequency, sub_targets, updated_at`

func (r *scheduleRepository) GetByKey(ctx context.Context, tx *sqlx.Tx, categoryID int64, platformType models.PlatformType, platformID int64) (*models.PlatformSchedule, bool, error) {
	var s models.PlatformSchedule
	query := r.db.Rebind(`SELECT ` + scheduleColumns + ` FROM platform_schedules
		WHERE category_id = ? AND platform_type = ? AND platform_id = ?`)
	err := sqlx.GetContext(ctx, ext(r.db, tx), &s, query, categoryID, platformType, platformID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &s, true, nil
}

func (r *scheduleRepository) Upsert(ctx context.Context, tx *sqlx.Tx, s *models.PlatformSchedule) (int64, error) {
	s.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO platform_schedules
			(category_id, platform_type, platform_id, enabled, days, times, posts_per_day, frequency, sub_targets, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category_id, platform_type, platform_id) DO UPDATE SET
			enabled = excluded.enabled,
			days = excluded.days,
			times = excluded.times,
			posts_per_day = excluded.posts_per_day,
			frequency = excluded.frequency,
			sub_targets = excluded.sub_targets,
			updated_at = excluded.updated_at
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query,
		s.CategoryID, s.PlatformType, s.PlatformID, s.Enabled, s.Days, s.Times,
		s.PostsPerDay, s.Frequency, s.SubTargets, s.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	s.ID = id
	return id, nil
}

// ListDue narrows candidates with LIKE on the delimited columns and keeps
// only exact matches, in id order.
func (r *scheduleRepository) ListDue(ctx context.Context, tx *sqlx.Tx, weekday, hhmm string) ([]*models.PlatformSchedule, error) {
	var rows []*models.PlatformSchedule
	query := r.db.Rebind(`SELECT ` + scheduleColumns + ` FROM platform_schedules
		WHERE enabled = ? AND days LIKE ? AND times LIKE ?
		ORDER BY id`)
	err := sqlx.SelectContext(ctx, ext(r.db, tx), &rows, query, true, "%,"+weekday+",%", "%,"+hhmm+",%")
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	due := rows[:0]
	for _, s := range rows {
		if s.IsDue(weekday, hhmm) {
			due = append(due, s)
		}
	}
	return due, nil
}

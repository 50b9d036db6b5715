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

type NotificationRepository interface {
	GetByUserKind(ctx context.Context, tx *sqlx.Tx, userID int64, kind models.NotificationKind) (*models.NotificationSchedule, bool, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, n *models.NotificationSchedule) (int64, error)
	ListDue(ctx context.Context, tx *sqlx.Tx, weekday, hhmm string) ([]*models.NotificationSchedule, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = "id, user_id, kind, enabled, days, times, updated_at"

func (r *notificationRepository) GetByUserKind(ctx context.Context, tx *sqlx.Tx, userID int64, kind models.NotificationKind) (*models.NotificationSchedule, bool, error) {
	var n models.NotificationSchedule
	query := r.db.Rebind("SELECT " + notificationColumns + " FROM notification_schedules WHERE user_id = ? AND kind = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &n, query, userID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &n, true, nil
}

func (r *notificationRepository) Upsert(ctx context.Context, tx *sqlx.Tx, n *models.NotificationSchedule) (int64, error) {
	n.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO notification_schedules (user_id, kind, enabled, days, times, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, kind) DO UPDATE SET
			enabled = excluded.enabled,
			days = excluded.days,
			times = excluded.times,
			updated_at = excluded.updated_at
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query, n.UserID, n.Kind, n.Enabled, n.Days, n.Times, n.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n.ID = id
	return id, nil
}

func (r *notificationRepository) ListDue(ctx context.Context, tx *sqlx.Tx, weekday, hhmm string) ([]*models.NotificationSchedule, error) {
	var rows []*models.NotificationSchedule
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notification_schedules
		WHERE enabled = ? AND days LIKE ? AND times LIKE ?
		ORDER BY id`)
	err := sqlx.SelectContext(ctx, ext(r.db, tx), &rows, query, true, "%,"+weekday+",%", "%,"+hhmm+",%")
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	due := rows[:0]
	for _, n := range rows {
		if n.IsDue(weekday, hhmm) {
			due = append(due, n)
		}
	}
	return due, nil
}

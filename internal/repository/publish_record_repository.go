package repository

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
)

type PublishRecordRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, rec *models.PublishRecord) (int64, error)
	List(ctx context.Context, tx *sqlx.Tx, f models.PublishRecordFilter) ([]*models.PublishRecord, error)
}

type publishRecordRepository struct {
	db *sqlx.DB
}

func NewPublishRecordRepository(db *sqlx.DB) PublishRecordRepository {
	return &publishRecordRepository{db: db}
}

func (r *publishRecordRepository) Create(ctx context.Context, tx *sqlx.Tx, rec *models.PublishRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	query, args, err := builder(r.db).
		Insert("publish_records").
		Columns("user_id", "category_id", "platform_type", "platform_id", "schedule_id",
			"trigger_kind", "success", "tokens_spent", "post_url", "error_message", "created_at").
		Values(rec.UserID, rec.CategoryID, rec.PlatformType, rec.PlatformID, rec.ScheduleID,
			rec.Trigger, rec.Success, rec.TokensSpent, rec.PostURL, rec.ErrorMessage, rec.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query, args...); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	rec.ID = id
	return id, nil
}

func (r *publishRecordRepository) List(ctx context.Context, tx *sqlx.Tx, f models.PublishRecordFilter) ([]*models.PublishRecord, error) {
	qb := builder(r.db).
		Select("id", "user_id", "category_id", "platform_type", "platform_id", "schedule_id",
			"trigger_kind", "success", "tokens_spent", "post_url", "error_message", "created_at").
		From("publish_records").
		Where(sq.Eq{"user_id": f.UserID}).
		OrderBy("created_at DESC", "id DESC")

	if f.PlatformType != "" {
		qb = qb.Where(sq.Eq{"platform_type": f.PlatformType})
	}
	if f.Success != nil {
		qb = qb.Where(sq.Eq{"success": *f.Success})
	}
	if !f.Since.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": f.Since.UTC()})
	}
	if f.Limit > 0 {
		qb = qb.Limit(f.Limit)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	var records []*models.PublishRecord
	if err := sqlx.SelectContext(ctx, ext(r.db, tx), &records, query, args...); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}

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

type ConnectionRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PlatformConnection, bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, c *models.PlatformConnection) (int64, error)
	ListByAccount(ctx context.Context, tx *sqlx.Tx, accountID int64) (map[models.PlatformType][]*models.PlatformConnection, error)
	SetActive(ctx context.Context, tx *sqlx.Tx, id int64, active bool) error
}

type connectionRepository struct {
	db *sqlx.DB
}

func NewConnectionRepository(db *sqlx.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = "id, account_id, platform_type, external_id, title, credentials, is_active, created_at"

func (r *connectionRepository) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PlatformConnection, bool, error) {
	var c models.PlatformConnection
	query := r.db.Rebind("SELECT " + connectionColumns + " FROM platform_connections WHERE id = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &c, true, nil
}

func (r *connectionRepository) Create(ctx context.Context, tx *sqlx.Tx, c *models.PlatformConnection) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO platform_connections (account_id, platform_type, external_id, title, credentials, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query,
		c.AccountID, c.PlatformType, c.ExternalID, c.Title, c.Credentials, c.IsActive, c.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (r *connectionRepository) ListByAccount(ctx context.Context, tx *sqlx.Tx, accountID int64) (map[models.PlatformType][]*models.PlatformConnection, error) {
	var rows []*models.PlatformConnection
	query := r.db.Rebind("SELECT " + connectionColumns + " FROM platform_connections WHERE account_id = ? ORDER BY id")
	if err := sqlx.SelectContext(ctx, ext(r.db, tx), &rows, query, accountID); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	byType := make(map[models.PlatformType][]*models.PlatformConnection)
	for _, c := range rows {
		byType[c.PlatformType] = append(byType[c.PlatformType], c)
	}
	return byType, nil
}

func (r *connectionRepository) SetActive(ctx context.Context, tx *sqlx.Tx, id int64, active bool) error {
	query := r.db.Rebind("UPDATE platform_connections SET is_active = ? WHERE id = ?")
	if _, err := ext(r.db, tx).ExecContext(ctx, query, active, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

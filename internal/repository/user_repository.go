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

type UserRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.User, bool, error)
	GetByChatID(ctx context.Context, tx *sqlx.Tx, chatID int64) (*models.User, bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, user *models.User) (int64, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.User, bool, error) {
	var user models.User
	query := r.db.Rebind("SELECT id, telegram_chat_id, username, created_at FROM users WHERE id = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) GetByChatID(ctx context.Context, tx *sqlx.Tx, chatID int64) (*models.User, bool, error) {
	var user models.User
	query := r.db.Rebind("SELECT id, telegram_chat_id, username, created_at FROM users WHERE telegram_chat_id = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &user, query, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) Create(ctx context.Context, tx *sqlx.Tx, user *models.User) (int64, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind("INSERT INTO users (telegram_chat_id, username, created_at) VALUES (?, ?, ?) RETURNING id")

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query, user.TelegramChatID, user.Username, user.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	user.ID = id
	return id, nil
}

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

type AccountRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Account, bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, account *models.Account) (int64, error)
}

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Account, bool, error) {
	var account models.Account
	query := r.db.Rebind("SELECT id, user_id, name, created_at FROM accounts WHERE id = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &account, true, nil
}

func (r *accountRepository) Create(ctx context.Context, tx *sqlx.Tx, account *models.Account) (int64, error) {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind("INSERT INTO accounts (user_id, name, created_at) VALUES (?, ?, ?) RETURNING id")

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query, account.UserID, account.Name, account.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	account.ID = id
	return id, nil
}

type CategoryRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Category, bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, category *models.Category) (int64, error)
}

type categoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Category, bool, error) {
	var category models.Category
	query := r.db.Rebind(`
		SELECT id, account_id, name, description, keywords, generate_image, created_at
		FROM categories WHERE id = ?`)
	err := sqlx.GetContext(ctx, ext(r.db, tx), &category, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &category, true, nil
}

func (r *categoryRepository) Create(ctx context.Context, tx *sqlx.Tx, c *models.Category) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO categories (account_id, name, description, keywords, generate_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, ext(r.db, tx), &id, query,
		c.AccountID, c.Name, c.Description, c.Keywords, c.GenerateImage, c.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	c.ID = id
	return id, nil
}

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

type BalanceRepository interface {
	Get(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, bool, error)
	Init(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error
	Debit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) (bool, error)
	Credit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) (bool, error)
	RecordTopUp(ctx context.Context, tx *sqlx.Tx, topUp *models.TokenTopUp) (bool, error)
}

type balanceRepository struct {
	db *sqlx.DB
}

func NewBalanceRepository(db *sqlx.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) Get(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, bool, error) {
	var balance int64
	query := r.db.Rebind("SELECT balance FROM token_balances WHERE user_id = ?")
	err := sqlx.GetContext(ctx, ext(r.db, tx), &balance, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}
	return balance, true, nil
}

// Init creates the balance row unless one already exists.
func (r *balanceRepository) Init(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error {
	query := r.db.Rebind(`
		INSERT INTO token_balances (user_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`)
	if _, err := ext(r.db, tx).ExecContext(ctx, query, userID, amount, time.Now().UTC()); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Debit subtracts amount only while the balance covers it. It reports false
// when no row was changed.
func (r *balanceRepository) Debit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) (bool, error) {
	query := r.db.Rebind(`
		UPDATE token_balances SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?`)
	res, err := ext(r.db, tx).ExecContext(ctx, query, amount, time.Now().UTC(), userID, amount)
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

func (r *balanceRepository) Credit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) (bool, error) {
	query := r.db.Rebind("UPDATE token_balances SET balance = balance + ?, updated_at = ? WHERE user_id = ?")
	res, err := ext(r.db, tx).ExecContext(ctx, query, amount, time.Now().UTC(), userID)
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

// RecordTopUp stores a payment reference once. A repeated reference reports
// false and changes nothing.
func (r *balanceRepository) RecordTopUp(ctx context.Context, tx *sqlx.Tx, t *models.TokenTopUp) (bool, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO token_topups (user_id, amount, reference, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (reference) DO NOTHING`)
	res, err := ext(r.db, tx).ExecContext(ctx, query, t.UserID, t.Amount, t.Reference, t.CreatedAt)
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

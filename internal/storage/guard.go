package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/metrics"
)

type GuardConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	StaleAfter time.Duration
}

// Guard runs storage work inside transactions, probing idle connections and
// retrying a bounded number of times when the connection drops. Recovery is
// serialized; business transactions are not.
type Guard struct {
	db  *sqlx.DB
	cfg GuardConfig

	recoverMu sync.Mutex

	mu       sync.Mutex
	lastUsed time.Time
}

func NewGuard(db *sqlx.DB, cfg GuardConfig) *Guard {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Guard{db: db, cfg: cfg, lastUsed: time.Now()}
}

func (g *Guard) DB() *sqlx.DB { return g.db }

// Run executes fn in a transaction. fn's value is returned only when the
// transaction commits; otherwise the outcome carries the zero value of T and
// the failure kind.
func Run[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context, tx *sqlx.Tx) (T, error)) Outcome[T] {
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if err := g.ensureAlive(ctx); err != nil {
			lastErr = err
		} else {
			v, err := inTx(ctx, g.db, fn)
			if err == nil {
				g.touch()
				return ok(v)
			}
			lastErr = err
		}

		if errors.Is(lastErr, ErrInvalid) {
			return failed[T](op, KindInvalid, lastErr)
		}
		if !IsConnectionError(lastErr) {
			slog.Error("storage operation failed", "op", op, "error", lastErr)
			metrics.IncStorageFailure(op, KindStorage.String())
			return failed[T](op, KindStorage, lastErr)
		}

		slog.Warn("storage connection error", "op", op, "attempt", attempt, "max", g.cfg.MaxRetries, "error", lastErr)
		metrics.IncStorageRetry(op)

		if attempt == g.cfg.MaxRetries {
			break
		}
		if err := g.reconnect(ctx); err != nil {
			slog.Warn("reconnect ping failed", "op", op, "error", err)
		}
		if err := sleepCtx(ctx, g.cfg.RetryDelay); err != nil {
			slog.Error("storage operation abandoned", "op", op, "error", err)
			metrics.IncStorageFailure(op, KindStorage.String())
			return failed[T](op, KindStorage, err)
		}
	}

	slog.Error("storage operation gave up", "op", op, "error", lastErr)
	metrics.IncStorageFailure(op, KindConnection.String())
	return failed[T](op, KindConnection, lastErr)
}

func inTx[T any](ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) (T, error)) (v T, err error) {
	var zero T

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	v, err = fn(ctx, tx)
	if err != nil {
		return zero, err
	}
	if err = tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// ensureAlive pings the database when it has been idle past StaleAfter.
func (g *Guard) ensureAlive(ctx context.Context) error {
	g.mu.Lock()
	idle := time.Since(g.lastUsed)
	g.mu.Unlock()

	if g.cfg.StaleAfter <= 0 || idle < g.cfg.StaleAfter {
		return nil
	}
	if err := g.db.PingContext(ctx); err != nil {
		return fmt.Errorf("liveness check: %w", err)
	}
	g.touch()
	return nil
}

// reconnect pings until the pool hands out a live connection. database/sql
// discards connections that fail with driver.ErrBadConn, so the pool's own
// settings are left untouched. Only one caller recovers at a time.
func (g *Guard) reconnect(ctx context.Context) error {
	g.recoverMu.Lock()
	defer g.recoverMu.Unlock()

	if err := g.db.PingContext(ctx); err != nil {
		return err
	}
	g.touch()
	return nil
}

func (g *Guard) touch() {
	g.mu.Lock()
	g.lastUsed = time.Now()
	g.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, maxRetries int) *Guard {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "guard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewGuard(db, GuardConfig{MaxRetries: maxRetries, RetryDelay: time.Millisecond, StaleAfter: time.Minute})
}

func flaky(failures int, calls *int) func(context.Context, *sqlx.Tx) (int64, error) {
	return func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		*calls++
		if *calls <= failures {
			return 0, fmt.Errorf("query: %w", driver.ErrBadConn)
		}
		var n int64
		err := tx.GetContext(ctx, &n, "SELECT 42")
		return n, err
	}
}

func TestRun_RecoversBelowRetryBound(t *testing.T) {
	g := newTestGuard(t, 3)

	for failures := 0; failures < 3; failures++ {
		calls := 0
		out := Run(context.Background(), g, "flaky", flaky(failures, &calls))

		assert.True(t, out.OK(), "failures=%d", failures)
		assert.Equal(t, int64(42), out.Value)
		assert.NoError(t, out.Err())
		assert.Equal(t, failures+1, calls)
	}
}

func TestRun_ReturnsSentinelAtRetryBound(t *testing.T) {
	g := newTestGuard(t, 3)

	for _, failures := range []int{3, 4, 10} {
		calls := 0
		out := Run(context.Background(), g, "flaky", flaky(failures, &calls))

		assert.False(t, out.OK())
		assert.Equal(t, KindConnection, out.Kind)
		assert.Zero(t, out.Value)
		assert.Equal(t, 3, calls)

		var serr *Error
		require.ErrorAs(t, out.Err(), &serr)
		assert.ErrorIs(t, serr, driver.ErrBadConn)
	}
}

func TestRun_LogicErrorRollsBackWithoutRetry(t *testing.T) {
	g := newTestGuard(t, 3)
	ctx := context.Background()

	calls := 0
	out := Run(ctx, g, "insert", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		calls++
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (username) VALUES ('ghost')"); err != nil {
			return false, err
		}
		return false, errors.New("boom")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, KindStorage, out.Kind)
	assert.False(t, out.Value)

	count := Run(ctx, g, "count", func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		var n int
		err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
		return n, err
	})
	require.True(t, count.OK())
	assert.Equal(t, 0, count.Value)
}

func TestRun_InvalidKind(t *testing.T) {
	g := newTestGuard(t, 3)

	out := Run(context.Background(), g, "validate", func(ctx context.Context, tx *sqlx.Tx) ([]string, error) {
		return []string{"partial"}, fmt.Errorf("bad time: %w", ErrInvalid)
	})

	assert.Equal(t, KindInvalid, out.Kind)
	assert.Nil(t, out.Value)
	assert.ErrorIs(t, out.Err(), ErrInvalid)
}

func TestRun_PanicRollsBack(t *testing.T) {
	g := newTestGuard(t, 1)
	ctx := context.Background()

	assert.Panics(t, func() {
		Run(ctx, g, "panic", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
			_, err := tx.ExecContext(ctx, "INSERT INTO users (username) VALUES ('ghost')")
			require.NoError(t, err)
			panic("adapter exploded")
		})
	})

	var n int
	require.NoError(t, g.DB().Get(&n, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 0, n)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "bad conn", err: driver.ErrBadConn, want: true},
		{name: "wrapped bad conn", err: fmt.Errorf("wrapped: %w", driver.ErrBadConn), want: true},
		{name: "connection reset", err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, want: true},
		{name: "logic error", err: errors.New("syntax error")},
		{name: "nil"},
		{name: "cancelled", err: fmt.Errorf("begin: %w", context.Canceled)},
		{name: "deadline", err: context.DeadlineExceeded},
		{name: "deadline as net error", err: &net.OpError{Op: "read", Net: "tcp", Err: context.DeadlineExceeded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

func TestRun_ContextErrorsAreNotRetried(t *testing.T) {
	g := newTestGuard(t, 3)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	out := Run(cancelled, g, "cancelled", flaky(0, &calls))
	assert.Equal(t, KindStorage, out.Kind)
	assert.ErrorIs(t, out.Err(), context.Canceled)
	assert.Equal(t, 0, calls)

	calls = 0
	out = Run(context.Background(), g, "timeout", func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		calls++
		return 0, &net.OpError{Op: "read", Net: "tcp", Err: context.DeadlineExceeded}
	})
	assert.Equal(t, KindStorage, out.Kind)
	assert.Equal(t, 1, calls)
}

func TestReconnect_LeavesPoolIntact(t *testing.T) {
	g := newTestGuard(t, 3)
	ctx := context.Background()

	var n int
	require.NoError(t, g.DB().GetContext(ctx, &n, "SELECT 1"))
	require.Equal(t, 1, g.DB().Stats().OpenConnections)

	require.NoError(t, g.reconnect(ctx))

	stats := g.DB().Stats()
	assert.Equal(t, 1, stats.OpenConnections)
	assert.Equal(t, 1, stats.Idle)
	assert.Zero(t, stats.MaxIdleTimeClosed)

	calls := 0
	out := Run(ctx, g, "flaky", flaky(1, &calls))
	require.True(t, out.OK())
	assert.Equal(t, 2, calls)
	assert.Zero(t, g.DB().Stats().MaxIdleTimeClosed)
}

// Package scheduler drives minute-granularity work from a single ticker.
// Every concern registers a Handler; the Dispatcher wakes up on its poll
// interval and hands each new wall-clock minute to all handlers in turn.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/metrics"
	"github.com/maheshrc27/autopost/internal/models"
)

// Minute is one wall-clock minute as the handlers see it.
type Minute struct {
	At      time.Time
	Weekday string
	HHMM    string
	Key     string
}

func MinuteOf(t time.Time) Minute {
	t = t.Truncate(time.Minute)
	return Minute{
		At:      t,
		Weekday: models.DayCode(t.Weekday()),
		HHMM:    t.Format("15:04"),
		Key:     models.MinuteKey(t),
	}
}

type Handler interface {
	Name() string
	// HandleMinute processes everything due in m and reports how many
	// items matched.
	HandleMinute(ctx context.Context, m Minute) (int, error)
}

type State int32

const (
	StateIdle State = iota
	StateStarting
	StatePolling
	StateTriggering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateTriggering:
		return "triggering"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	DefaultCooldown = 2 * time.Minute

	NextMinuteBoundary time.Duration = -1
)

type Config struct {
	GracePeriod  time.Duration
	PollInterval time.Duration
	// Cooldown is the pause after a minute that matched something. Zero
	// means DefaultCooldown; NextMinuteBoundary waits only until the next
	// minute starts.
	Cooldown     time.Duration
	ErrorBackoff time.Duration
}

var (
	ErrAlreadyStarted = errors.New("dispatcher already started")
	ErrStopTimeout    = errors.New("dispatcher did not stop in time")
)

type Dispatcher struct {
	cfg      Config
	clock    clock.Clock
	handlers []Handler

	state atomic.Int32

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// lastMinute is only touched by the loop goroutine.
	lastMinute string
}

func NewDispatcher(cfg Config, clk clock.Clock, handlers ...Handler) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Dispatcher{cfg: cfg, clock: clk, handlers: handlers, done: make(chan struct{})}
}

func (d *Dispatcher) State() State { return State(d.state.Load()) }

func (d *Dispatcher) setState(s State) { d.state.Store(int32(s)) }

// Start launches the loop. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.setState(StateStarting)
	go d.loop(ctx)
	return nil
}

// Stop cancels the loop and waits up to timeout for the running tick to
// finish. Jobs already started are not interrupted.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		d.setState(StateStopped)
		return nil
	}
	d.cancel()
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	defer d.setState(StateStopped)

	slog.Info("scheduler starting", "grace_period", d.cfg.GracePeriod, "handlers", len(d.handlers))
	if !d.sleep(ctx, d.cfg.GracePeriod) {
		return
	}

	for {
		d.setState(StatePolling)
		wait := d.poll(ctx)
		if !d.sleep(ctx, wait) {
			return
		}
	}
}

// poll handles the current minute if it is new and returns how long to
// wait before the next poll.
func (d *Dispatcher) poll(ctx context.Context) time.Duration {
	m := MinuteOf(d.clock.Now())
	if m.Key == d.lastMinute {
		return d.cfg.PollInterval
	}
	d.lastMinute = m.Key

	d.setState(StateTriggering)
	metrics.IncSchedulerTick()

	matched, failed := 0, false
	for _, h := range d.handlers {
		if ctx.Err() != nil {
			break
		}
		n, err := d.runHandler(ctx, h, m)
		matched += n
		metrics.AddSchedulerMatches(h.Name(), n)
		if err != nil && !errors.Is(err, context.Canceled) {
			failed = true
			metrics.IncSchedulerError(h.Name())
			slog.Error("scheduler handler failed", "handler", h.Name(), "minute", m.Key, "error", err)
		}
	}

	switch {
	case failed:
		return d.cfg.ErrorBackoff
	case matched > 0:
		return d.cooldown(m)
	default:
		return d.cfg.PollInterval
	}
}

func (d *Dispatcher) runHandler(ctx context.Context, h Handler, m Minute) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Name(), p)
		}
	}()
	return h.HandleMinute(ctx, m)
}

func (d *Dispatcher) cooldown(m Minute) time.Duration {
	if d.cfg.Cooldown > 0 {
		return d.cfg.Cooldown
	}
	return max(m.At.Add(time.Minute).Sub(d.clock.Now()), 0)
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-d.clock.After(wait):
		return true
	}
}

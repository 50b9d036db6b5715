package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Publishing
	publishAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_publish_attempts_total",
			Help: "Total number of publish attempts by platform, trigger and result.",
		},
		[]string{"platform", "trigger", "result"},
	)
	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopost_publish_duration_seconds",
			Help:    "Time spent in a single publish job, generation included.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"platform"},
	)
	publishDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopost_publish_duplicates_total",
			Help: "Scheduled publishes skipped because another instance claimed the minute.",
		},
	)

	// Billing
	tokensDebited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopost_tokens_debited_total",
			Help: "Total tokens debited from user balances.",
		},
	)
	tokenRefunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_token_refunds_total",
			Help: "Total number of refunds after a failed billable operation.",
		},
		[]string{"operation"},
	)
	insufficientBalance = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_insufficient_balance_total",
			Help: "Billable operations rejected for lack of tokens.",
		},
		[]string{"operation"},
	)

	// Scheduler
	schedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopost_scheduler_ticks_total",
			Help: "Minutes evaluated by the scheduler.",
		},
	)
	schedulerMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_scheduler_matches_total",
			Help: "Due rows found per handler.",
		},
		[]string{"handler"},
	)
	schedulerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_scheduler_errors_total",
			Help: "Handler errors and panics caught by the scheduler.",
		},
		[]string{"handler"},
	)

	// Storage
	storageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_storage_retries_total",
			Help: "Connection-class storage errors that triggered a retry.",
		},
		[]string{"op"},
	)
	storageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_storage_failures_total",
			Help: "Storage operations that returned an empty outcome.",
		},
		[]string{"op", "kind"},
	)

	// Notifications
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopost_notifications_sent_total",
			Help: "Notifications delivered by kind.",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			publishAttempts,
			publishDuration,
			publishDuplicates,

			tokensDebited,
			tokenRefunds,
			insufficientBalance,

			schedulerTicks,
			schedulerMatches,
			schedulerErrors,

			storageRetries,
			storageFailures,

			notificationsSent,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Publishing ---
func ObservePublish(platform, trigger string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	publishAttempts.WithLabelValues(platform, trigger, result).Inc()
	publishDuration.WithLabelValues(platform).Observe(d.Seconds())
}
func IncPublishDuplicate() { publishDuplicates.Inc() }

// --- Billing ---
func AddTokensDebited(n int64) {
	if n > 0 {
		tokensDebited.Add(float64(n))
	}
}
func IncRefund(operation string)              { tokenRefunds.WithLabelValues(operation).Inc() }
func IncInsufficientBalance(operation string) { insufficientBalance.WithLabelValues(operation).Inc() }

// --- Scheduler ---
func IncSchedulerTick()                   { schedulerTicks.Inc() }
func AddSchedulerMatches(h string, n int) { schedulerMatches.WithLabelValues(h).Add(float64(n)) }
func IncSchedulerError(h string)          { schedulerErrors.WithLabelValues(h).Inc() }

// --- Storage ---
func IncStorageRetry(op string)         { storageRetries.WithLabelValues(op).Inc() }
func IncStorageFailure(op, kind string) { storageFailures.WithLabelValues(op, kind).Inc() }

// --- Notifications ---
func IncNotificationSent(kind string) { notificationsSent.WithLabelValues(kind).Inc() }

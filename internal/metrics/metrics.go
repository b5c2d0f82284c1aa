// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting storefront order and notification metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDisabled = "disabled"
)

// 1. Internal State (Source of Truth)
var (
	ordersCreated         int64
	notificationsSent     int64
	notificationsFailed   int64
	notificationsDisabled int64
	lastDispatch          int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promOrders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total orders persisted",
		},
	)
	promNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Order notification attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	promDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_notification_dispatch_duration_seconds",
			Help:    "Wall time of one order notification fan-out",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
	)
	promLastDispatch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_last_dispatch_timestamp_seconds",
			Help: "Unix timestamp of the last notification fan-out",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promOrders,
		promNotifications,
		promDispatchDuration,
		promLastDispatch,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncOrderCreated counts a persisted order.
func IncOrderCreated() {
	atomic.AddInt64(&ordersCreated, counterInc)
	promOrders.Inc()
}

// RecordNotification counts one channel outcome (see the Outcome* labels).
func RecordNotification(channel, outcome string) {
	switch outcome {
	case OutcomeSuccess:
		atomic.AddInt64(&notificationsSent, counterInc)
	case OutcomeFailure:
		atomic.AddInt64(&notificationsFailed, counterInc)
	case OutcomeDisabled:
		atomic.AddInt64(&notificationsDisabled, counterInc)
	}
	promNotifications.WithLabelValues(channel, outcome).Inc()
}

// ObserveDispatch records the duration of a fan-out and stamps its end time.
func ObserveDispatch(d time.Duration, at time.Time) {
	promDispatchDuration.Observe(d.Seconds())
	atomic.StoreInt64(&lastDispatch, at.Unix())
	promLastDispatch.Set(float64(at.Unix()))
}

// 4. JSON Snapshot Struct

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	OrdersCreated         int64  `json:"orders_created"`
	NotificationsSent     int64  `json:"notifications_sent"`
	NotificationsFailed   int64  `json:"notifications_failed"`
	NotificationsDisabled int64  `json:"notifications_disabled"`
	LastDispatch          int64  `json:"last_dispatch_timestamp"`
	LastDispatchHuman     string `json:"last_dispatch_human,omitempty"`
}

// GetSnapshot returns the current values of all internal counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastDispatch)
	s := StatsSnapshot{
		OrdersCreated:         atomic.LoadInt64(&ordersCreated),
		NotificationsSent:     atomic.LoadInt64(&notificationsSent),
		NotificationsFailed:   atomic.LoadInt64(&notificationsFailed),
		NotificationsDisabled: atomic.LoadInt64(&notificationsDisabled),
		LastDispatch:          ts,
	}
	if ts > 0 {
		s.LastDispatchHuman = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return s
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler serves the current metrics as a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}

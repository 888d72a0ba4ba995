package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event stream metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_total",
			Help: "Total number of websocket events by tag and whether a handler matched",
		},
		[]string{"event", "handled"},
	)

	Connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_connected",
			Help: "Whether the event stream is connected (1 = connected, 0 = disconnected)",
		},
	)

	// Reconciliation metrics
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_reconciliations_total",
			Help: "Total number of reconciliations by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_reconcile_duration_seconds",
			Help:    "Time taken to reconcile the cache after a connect in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Cache metrics
	BatchesApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_batches_applied_total",
			Help: "Total number of action batches applied to the cache",
		},
	)

	TypingSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_typing_sent_total",
			Help: "Total number of outbound typing notifications sent",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(Connected)
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(BatchesApplied)
	prometheus.MustRegister(TypingSent)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}

// SetConnected updates the connection gauge.
func SetConnected(connected bool) {
	if connected {
		Connected.Set(1)
		return
	}
	Connected.Set(0)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journal_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TradesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_trades_opened_total",
		Help: "Trades opened",
	})

	// outcome is win, loss, breakeven or undefined
	TradesClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_trades_closed_total",
			Help: "Trades closed by outcome",
		},
		[]string{"outcome"},
	)

	TradesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_trades_deleted_total",
		Help: "Trades deleted",
	})

	BalanceAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_balance_adjustments_total",
			Help: "Account balance adjustments by reason",
		},
		[]string{"reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_cache_lookups_total",
			Help: "Analytics cache lookups by result",
		},
		[]string{"result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_events_published_total",
			Help: "Trade lifecycle events by type",
		},
		[]string{"type"},
	)

	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_reconcile_runs_total",
		Help: "Completed balance reconciliation passes",
	})

	BalanceDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_balance_drift_accounts",
		Help: "Accounts whose balance disagreed with their closed trades on the last pass",
	})
)

// Outcome labels a closed trade for TradesClosed.
func Outcome(result *float64) string {
	switch {
	case result == nil:
		return "undefined"
	case *result > 0:
		return "win"
	case *result < 0:
		return "loss"
	default:
		return "breakeven"
	}
}

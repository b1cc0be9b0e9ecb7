package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Account metrics
	AccountsCreated   prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Journal metrics
	EntriesDrafted  prometheus.Counter
	EntriesPosted   prometheus.Counter
	EntriesReversed prometheus.Counter
	PostDuration    prometheus.Histogram
	PostedAmount    prometheus.Histogram
	PostingErrors   *prometheus.CounterVec

	// Projection metrics
	ProjectionCache    *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	ImbalancedReports  prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "gledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_account_operations_total",
				Help: "Total chart of accounts operations by type",
			},
			[]string{"operation"},
		),

		EntriesDrafted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gledger_journal_entries_drafted_total",
			Help: "Total number of journal entries drafted",
		}),
		EntriesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gledger_journal_entries_posted_total",
			Help: "Total number of journal entries posted",
		}),
		EntriesReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gledger_journal_entries_reversed_total",
			Help: "Total number of journal entries reversed",
		}),
		PostDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gledger_post_duration_seconds",
			Help:    "Duration of post and reverse operations",
			Buckets: prometheus.DefBuckets,
		}),
		PostedAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gledger_posted_amount",
			Help:    "Total debit of posted journal entries",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		PostingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_posting_errors_total",
				Help: "Total number of rejected journal operations by reason",
			},
			[]string{"reason"},
		),

		ProjectionCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_projection_cache_total",
				Help: "Projection cache lookups by result",
			},
			[]string{"result"},
		),
		ProjectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gledger_projection_duration_seconds",
				Help:    "Duration of ledger projections by kind",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"projection"},
		),
		ImbalancedReports: factory.NewCounter(prometheus.CounterOpts{
			Name: "gledger_imbalanced_trial_balances_total",
			Help: "Trial balances computed with a non-zero delta",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"tenant"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_outbox_events_total",
				Help: "Outbox events handled by the publisher",
			},
			[]string{"event_type", "status"},
		),

		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// gRPC metrics
	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	GRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Reservation metrics
	ReservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_created_total",
			Help: "Total number of reservations created",
		},
		[]string{"status", "tier"},
	)

	ReservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_transitions_total",
			Help: "Total number of reservation state transitions",
		},
		[]string{"from", "to"},
	)

	SlotConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_conflicts_total",
			Help: "Total number of booking attempts rejected by slot conflicts",
		},
	)

	// Pricing metrics
	QuotesComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_quotes_total",
			Help: "Total number of price quotes computed",
		},
		[]string{"tier"},
	)

	QuoteTotal = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_quote_total_amount",
			Help:    "Quoted total amount distribution",
			Buckets: []float64{25, 50, 75, 100, 150, 200, 300, 500},
		},
		[]string{"tier"},
	)

	RuleApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_rule_applications_total",
			Help: "Total number of pricing rule applications",
		},
		[]string{"rule_id"},
	)

	// Credit ledger metrics
	LedgerDebits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_debits_total",
			Help: "Total number of credit instrument debits",
		},
	)

	LedgerRefunds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_refunds_total",
			Help: "Total number of credit instrument refunds",
		},
	)

	LedgerHoursDebited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_hours_debited_total",
			Help: "Total instrument hours debited",
		},
	)

	// Weather provider metrics
	WeatherAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_api_calls_total",
			Help: "Total number of weather API calls",
		},
		[]string{"status"},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Redis metrics
	RedisOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// RecordGRPCRequest records a gRPC request
func RecordGRPCRequest(method, status string, duration time.Duration) {
	GRPCRequestsTotal.WithLabelValues(method, status).Inc()
	GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordReservationCreated records a reservation creation
func RecordReservationCreated(status, tier string) {
	ReservationsCreated.WithLabelValues(status, tier).Inc()
}

// RecordTransition records a reservation state transition
func RecordTransition(from, to string) {
	ReservationTransitions.WithLabelValues(from, to).Inc()
}

// RecordQuote records a computed price quote
func RecordQuote(tier string, total float64) {
	QuotesComputed.WithLabelValues(tier).Inc()
	QuoteTotal.WithLabelValues(tier).Observe(total)
}

// RecordDebit records a ledger debit
func RecordDebit(hours float64) {
	LedgerDebits.Inc()
	LedgerHoursDebited.Add(hours)
}

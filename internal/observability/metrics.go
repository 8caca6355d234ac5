// Package observability provides prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// Registrations counts completed sign-ups by whether verification was required.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_registrations_total",
		Help: "Total number of registered users",
	}, []string{"verification"})

	// VerificationMails counts verification mail attempts by outcome.
	VerificationMails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_verification_mails_total",
		Help: "Verification emails attempted, by result",
	}, []string{"result"})

	// AuthFailures counts rejected credentials and tokens by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_failures_total",
		Help: "Rejected logins and tokens by reason",
	}, []string{"reason"})

	// LikeToggles counts like toggles by resulting action.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_like_toggles_total",
		Help: "Post like toggles by resulting action",
	}, []string{"action"})

	// CascadeDeletes counts rows removed as a side effect of deleting a parent.
	CascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cascade_deleted_rows_total",
		Help: "Rows removed by cascading deletes, by parent and table",
	}, []string{"parent", "table"})
)

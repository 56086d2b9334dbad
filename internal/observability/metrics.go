// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CounterAdjustments counts denormalized counter adjustments by parent
	// kind, field and direction.
	CounterAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_counter_adjustments_total",
		Help: "Total number of denormalized counter adjustments applied",
	}, []string{"kind", "field", "direction"})

	// CounterAdjustmentsAbsorbed counts adjustments that targeted a parent
	// row that no longer exists and were silently absorbed.
	CounterAdjustmentsAbsorbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_counter_adjustments_absorbed_total",
		Help: "Total number of counter adjustments absorbed because the parent row was gone",
	}, []string{"kind", "field"})

	// LikeToggleConflicts counts duplicate-insert races swallowed by the
	// toggle protocol.
	LikeToggleConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_like_toggle_conflicts_total",
		Help: "Total number of like-insert uniqueness conflicts resolved by re-reading",
	}, []string{"kind"})

	// ViewsCounted counts view increments that passed deduplication.
	ViewsCounted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_views_counted_total",
		Help: "Total number of view-count increments applied",
	}, []string{"kind"})

	// ViewsSuppressed counts view events suppressed by the dedup cache or the
	// owner bypass.
	ViewsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_views_suppressed_total",
		Help: "Total number of view events suppressed",
	}, []string{"kind", "reason"})

	// ViewDedupEntries is the current size of the process-local dedup cache.
	ViewDedupEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atelier_view_dedup_entries",
		Help: "Current number of entries in the view dedup cache",
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ReconcileRepairs counts counters rewritten by the reconciliation pass.
	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_reconcile_repairs_total",
		Help: "Total number of drifted counters repaired by the reconciliation pass",
	}, []string{"table", "field"})

	// ReconcileDuration records reconciliation pass latency.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atelier_reconcile_duration_seconds",
		Help:    "Reconciliation pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveReconcile records the duration of a reconciliation pass.
func ObserveReconcile(start time.Time) {
	ReconcileDuration.Observe(time.Since(start).Seconds())
}

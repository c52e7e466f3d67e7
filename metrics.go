package authsession

import (
	"sync/atomic"
)

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts authority-rejected logins.
	MetricLoginFailure
	// MetricRefreshSuccess counts token pairs installed by refresh.
	MetricRefreshSuccess
	// MetricRefreshFailure counts transient refresh failures.
	MetricRefreshFailure
	// MetricRefreshCollapsed counts callers that attached to an in-flight refresh.
	MetricRefreshCollapsed
	// MetricRefreshRejected counts fatal refresh-token rejections.
	MetricRefreshRejected
	// MetricValidateSuccess counts validations confirming the session.
	MetricValidateSuccess
	// MetricValidateStale counts validation attempts absorbed as transport failures.
	MetricValidateStale
	// MetricValidateInvalid counts validations reporting the session dead.
	MetricValidateInvalid
	// MetricExpiryWarned counts warning-window transitions.
	MetricExpiryWarned
	// MetricExpiryFired counts expiry-timer terminations.
	MetricExpiryFired
	// MetricExpiryExtended counts reschedules to a later expiry.
	MetricExpiryExtended
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricActivityRevalidation counts revalidations requested by the
	// activity monitor (idle timer firing or activity during the warning window).
	MetricActivityRevalidation
	// MetricVisibilityRevalidation counts revalidations requested on refocus.
	MetricVisibilityRevalidation
	// MetricRehydrateSuccess counts sessions restored from storage.
	MetricRehydrateSuccess
	// MetricRehydrateCorrupt counts snapshots discarded as corrupt.
	MetricRehydrateCorrupt
	// MetricSnapshotWriteFailure counts absorbed storage write faults.
	MetricSnapshotWriteFailure
	// MetricStaleResultDiscarded counts async results dropped by the
	// generation check.
	MetricStaleResultDiscarded

	metricIDCount
)

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get describes the get operation and its observable behavior.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}

package database

import (
	"sync/atomic"
	"time"
)

// Metrics counts statements issued through the Manager
type Metrics struct {
	slowQueryThreshold time.Duration

	queryCount     atomic.Int64
	queryDuration  atomic.Int64 // nanoseconds
	errorCount     atomic.Int64
	slowQueryCount atomic.Int64

	selectCount   atomic.Int64
	queryRowCount atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters
type MetricsSnapshot struct {
	QueryCount       int64         `json:"query_count"`
	ErrorCount       int64         `json:"error_count"`
	SlowQueryCount   int64         `json:"slow_query_count"`
	AvgQueryDuration time.Duration `json:"avg_query_duration"`
	SelectCount      int64         `json:"select_count"`
	QueryRowCount    int64         `json:"query_row_count"`
}

// NewMetrics creates a collector that treats statements slower than
// slowQueryThreshold as slow
func NewMetrics(slowQueryThreshold time.Duration) *Metrics {
	return &Metrics{slowQueryThreshold: slowQueryThreshold}
}

// RecordQuery records one statement of the given kind
func (m *Metrics) RecordQuery(kind string, duration time.Duration, err error) {
	m.queryCount.Add(1)
	m.queryDuration.Add(int64(duration))

	if err != nil {
		m.errorCount.Add(1)
	}
	if duration > m.slowQueryThreshold {
		m.slowQueryCount.Add(1)
	}

	switch kind {
	case "query":
		m.selectCount.Add(1)
	case "query_row":
		m.queryRowCount.Add(1)
	}
}

// Snapshot returns the current counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		QueryCount:     m.queryCount.Load(),
		ErrorCount:     m.errorCount.Load(),
		SlowQueryCount: m.slowQueryCount.Load(),
		SelectCount:    m.selectCount.Load(),
		QueryRowCount:  m.queryRowCount.Load(),
	}
	if snapshot.QueryCount > 0 {
		snapshot.AvgQueryDuration = time.Duration(m.queryDuration.Load() / snapshot.QueryCount)
	}
	return snapshot
}

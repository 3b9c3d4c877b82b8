package metrics

import (
	"sync/atomic"
)

// Metrics tracks operational counters for the lifetime of the process.
type Metrics struct {
	CyclesRun       uint64
	CyclesFailed    uint64
	PRsMirrored     uint64
	PRsSkipped      uint64
	MergeFailures   uint64
	PublishFailures uint64
}

var global = &Metrics{}

// CycleRun increments the count of polling cycles started.
func CycleRun() { atomic.AddUint64(&global.CyclesRun, 1) }

// CycleFailed increments the count of cycles that ended early.
func CycleFailed() { atomic.AddUint64(&global.CyclesFailed, 1) }

// PRMirrored increments the count of pull requests mirrored and published.
func PRMirrored() { atomic.AddUint64(&global.PRsMirrored, 1) }

// PRSkipped increments the count of closed pull requests skipped as unmerged.
func PRSkipped() { atomic.AddUint64(&global.PRsSkipped, 1) }

// MergeFailed increments the count of failed merge script runs.
func MergeFailed() { atomic.AddUint64(&global.MergeFailures, 1) }

// PublishFailed increments the count of failed downstream pull request creations.
func PublishFailed() { atomic.AddUint64(&global.PublishFailures, 1) }

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	return Metrics{
		CyclesRun:       atomic.LoadUint64(&global.CyclesRun),
		CyclesFailed:    atomic.LoadUint64(&global.CyclesFailed),
		PRsMirrored:     atomic.LoadUint64(&global.PRsMirrored),
		PRsSkipped:      atomic.LoadUint64(&global.PRsSkipped),
		MergeFailures:   atomic.LoadUint64(&global.MergeFailures),
		PublishFailures: atomic.LoadUint64(&global.PublishFailures),
	}
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	atomic.StoreUint64(&global.CyclesRun, 0)
	atomic.StoreUint64(&global.CyclesFailed, 0)
	atomic.StoreUint64(&global.PRsMirrored, 0)
	atomic.StoreUint64(&global.PRsSkipped, 0)
	atomic.StoreUint64(&global.MergeFailures, 0)
	atomic.StoreUint64(&global.PublishFailures, 0)
}

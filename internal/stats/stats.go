// Package stats tracks in-memory counters and timestamps describing a
// running backup engine's operational activity.
package stats

import (
	"sync"
	"time"
)

// Stats is a point-in-time, immutable snapshot returned to callers.
type Stats struct {
	GenerationCount    uint64
	LastSyncTime       *time.Time
	LastSnapshotTime   *time.Time
	TotalBytesUploaded uint64
	SyncCount          uint64
	ErrorCount         uint64
}

// Tracker is the mutable, mutex-guarded collector updated by engine
// operations as they run.
type Tracker struct {
	mu sync.Mutex

	generationCount    uint64
	lastSyncTime       *time.Time
	lastSnapshotTime   *time.Time
	totalBytesUploaded uint64
	syncCount          uint64
	errorCount         uint64
}

// New creates a Tracker with generationCount starting at 1, matching a
// freshly created engine owning exactly one generation.
func New() *Tracker {
	return &Tracker{generationCount: 1}
}

// RecordSnapshot records a completed snapshot upload of the given size.
func (t *Tracker) RecordSnapshot(bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.lastSnapshotTime = &now
	t.totalBytesUploaded += bytes
}

// RecordSync records a completed WAL segment upload of the given size.
func (t *Tracker) RecordSync(bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.lastSyncTime = &now
	t.totalBytesUploaded += bytes
	t.syncCount++
}

// RecordNewGeneration increments the generation counter after a checkpoint
// or recovery rolls the engine to a fresh generation.
func (t *Tracker) RecordNewGeneration() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generationCount++
}

// RecordError increments the error counter, used for best-effort failures
// that are swallowed rather than propagated (e.g. shutdown's final sync).
func (t *Tracker) RecordError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorCount++
}

// Snapshot returns a copy of the tracker's current state.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		GenerationCount:    t.generationCount,
		LastSyncTime:       t.lastSyncTime,
		LastSnapshotTime:   t.lastSnapshotTime,
		TotalBytesUploaded: t.totalBytesUploaded,
		SyncCount:          t.syncCount,
		ErrorCount:         t.errorCount,
	}
}

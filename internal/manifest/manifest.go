// Package manifest defines the per-generation segment index that the backup
// engine rewrites and re-uploads after every successful segment upload.
package manifest

// Segment describes one uploaded WAL segment within a generation.
type Segment struct {
	Index       uint32 `json:"index"`
	TimestampMs uint64 `json:"timestamp_ms"`
	Offset      uint64 `json:"offset"`
	Size        uint64 `json:"size"`
}

// Manifest is the per-generation document stored at `{gen}/manifest.json`.
type Manifest struct {
	Generation           string    `json:"generation"`
	CreatedAtMs          uint64    `json:"created_at_ms"`
	SnapshotTimestampMs  uint64    `json:"snapshot_timestamp_ms"`
	Segments             []Segment `json:"segments"`
}

// New creates an empty manifest for generation with both timestamps set to
// nowMs.
func New(generation string, nowMs uint64) *Manifest {
	return &Manifest{
		Generation:          generation,
		CreatedAtMs:         nowMs,
		SnapshotTimestampMs: nowMs,
		Segments:            make([]Segment, 0),
	}
}

// AddSegment appends a segment record. Callers are responsible for the
// dense, contiguous-cover invariant (segments[i].offset + segments[i].size
// == segments[i+1].offset).
func (m *Manifest) AddSegment(index uint32, timestampMs, offset, size uint64) {
	m.Segments = append(m.Segments, Segment{
		Index:       index,
		TimestampMs: timestampMs,
		Offset:      offset,
		Size:        size,
	})
}

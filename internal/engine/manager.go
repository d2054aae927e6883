// Package engine implements the progressive WAL backup engine: it pins a
// SQLite database's WAL with a long-running read transaction, streams new
// WAL bytes to object storage between snapshots, and rolls over to fresh
// generations on checkpoint or WAL discontinuity.
package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walguard/walguard/internal/codec"
	"github.com/walguard/walguard/internal/common"
	"github.com/walguard/walguard/internal/config"
	"github.com/walguard/walguard/internal/dbfile"
	"github.com/walguard/walguard/internal/logging"
	"github.com/walguard/walguard/internal/manifest"
	"github.com/walguard/walguard/internal/objectstore"
	"github.com/walguard/walguard/internal/stats"
)

const (
	walHeaderSize = 32
	// walSaltOffset/walSaltLen bound the salt fields in the WAL header used
	// to detect an externally restarted WAL.
	walSaltOffset = 16
	walSaltLen    = 8
)

// CompactionResult reports how many WAL segments a generation held before
// and after a Compact call.
type CompactionResult struct {
	SegmentsBefore uint32
	SegmentsAfter  uint32
}

// Manager owns exactly one generation's worth of backup state at a time. It
// is not internally thread-safe: callers driving concurrent access (e.g. a
// sync ticker racing a manual checkpoint request) must serialize calls with
// their own mutex.
type Manager struct {
	cfg   config.Config
	store objectstore.Store
	log   zerolog.Logger

	generation string
	reader     *dbfile.Reader

	walOffset     uint64
	walIndex      uint32
	walHeaderSalt *[walSaltLen]byte

	manifest *manifest.Manifest
	stats    *stats.Tracker

	lastSnapshotTime time.Time
	shutdownComplete bool
	compacting       bool
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// New builds a Manager against a live S3-compatible store. If
// cfg.AutoRestore is set and cfg.DBPath doesn't exist yet, it restores the
// latest generation from S3 before opening the database. New always takes
// an initial full snapshot before returning.
func New(ctx context.Context, cfg config.Config) (*Manager, error) {
	if cfg.AutoRestore {
		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			logging.Component("engine").Info().Str("db_path", cfg.DBPath).Msg("db not found, auto-restoring from object storage")
			if err := Restore(ctx, cfg.S3, cfg.DBPath, WithDecodeConfig(decodeConfig(cfg))); err != nil {
				return nil, err
			}
		}
	}

	store, err := objectstore.NewS3Store(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return newManager(ctx, cfg, store)
}

func newManager(ctx context.Context, cfg config.Config, store objectstore.Store) (*Manager, error) {
	reader, err := dbfile.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := reader.BeginPin(ctx); err != nil {
		reader.Close()
		return nil, err
	}

	generation := uuid.New().String()
	ts := nowMs()

	mgr := &Manager{
		cfg:              cfg,
		store:            store,
		log:              logging.Component("engine"),
		generation:       generation,
		reader:           reader,
		manifest:         manifest.New(generation, ts),
		stats:            stats.New(),
		lastSnapshotTime: time.Now(),
	}

	if err := mgr.Snapshot(ctx); err != nil {
		reader.EndPin()
		reader.Close()
		return nil, err
	}

	runtime.SetFinalizer(mgr, finalizeManager)
	return mgr, nil
}

// finalizeManager is a best-effort safety net for callers that forget to
// call Shutdown: it releases the pinning transaction so the WAL isn't held
// open forever, and logs a warning since the final sync was skipped.
func finalizeManager(m *Manager) {
	if m.shutdownComplete {
		return
	}
	m.log.Warn().Str("generation", m.generation).Msg("manager finalized without calling Shutdown — releasing read transaction, final WAL sync was skipped")
	if m.reader != nil {
		m.reader.EndPin()
	}
}

func decodeConfig(cfg config.Config) codec.PipelineConfig {
	return codec.PipelineConfig{Compression: cfg.Compression, EncryptionKey: cfg.EncryptionKey}
}

func (m *Manager) pipelineEncode(data []byte) ([]byte, error) {
	return codec.EncodePipeline(data, decodeConfig(m.cfg))
}

func (m *Manager) pipelineDecode(data []byte) ([]byte, error) {
	return codec.DecodePipeline(data, decodeConfig(m.cfg))
}

func (m *Manager) walPath() string {
	return m.cfg.DBPath + "-wal"
}

func (m *Manager) uploadManifest(ctx context.Context) error {
	data, err := manifest.Marshal(m.manifest)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, m.generation+"/manifest.json", data)
}

// Snapshot uploads a full copy of the database file, resets WAL tracking to
// start a fresh segment sequence, and records the generation as the latest
// in object storage.
func (m *Manager) Snapshot(ctx context.Context) error {
	raw, err := os.ReadFile(m.cfg.DBPath)
	if err != nil {
		return common.Wrap(common.ErrLocalIO, "read db file", err)
	}
	data, err := m.pipelineEncode(raw)
	if err != nil {
		return err
	}

	if err := m.store.Put(ctx, m.generation+"/snapshot", data); err != nil {
		return err
	}
	if err := m.store.Put(ctx, "latest", []byte(m.generation)); err != nil {
		return err
	}

	m.walOffset = 0
	m.walIndex = 0
	m.walHeaderSalt = nil

	m.stats.RecordSnapshot(uint64(len(data)))
	m.lastSnapshotTime = time.Now()

	m.manifest.SnapshotTimestampMs = nowMs()
	m.manifest.Segments = nil
	if err := m.uploadManifest(ctx); err != nil {
		return err
	}

	m.log.Info().Str("generation", m.generation).Msg("snapshot uploaded")
	return nil
}

// SyncWAL uploads WAL bytes written since the last sync. It returns false
// (with no error) when there was nothing new to upload — either the WAL
// file doesn't exist, has no frames past the header, or a discontinuity
// was detected and handled by starting a new generation instead.
func (m *Manager) SyncWAL(ctx context.Context) (bool, error) {
	if m.compacting {
		return false, common.New(common.ErrLogical, "sync skipped: compaction in progress")
	}

	data, err := os.ReadFile(m.walPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, common.Wrap(common.ErrLocalIO, "read wal file", err)
	}
	walLen := uint64(len(data))

	if walLen <= walHeaderSize {
		return false, nil
	}

	if checkWALDiscontinuity(m.walOffset, m.walHeaderSalt, data, walLen) {
		m.log.Warn().Msg("WAL discontinuity detected, starting recovery")
		if err := m.Recover(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	if m.walHeaderSalt == nil && len(data) >= walSaltOffset+walSaltLen {
		var salt [walSaltLen]byte
		copy(salt[:], data[walSaltOffset:walSaltOffset+walSaltLen])
		m.walHeaderSalt = &salt
	}

	if walLen <= m.walOffset {
		return false, nil
	}

	newData := data[m.walOffset:]
	encoded, err := m.pipelineEncode(newData)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("%s/wal/%08d", m.generation, m.walIndex)
	if err := m.store.Put(ctx, key, encoded); err != nil {
		return false, err
	}

	segmentSize := uint64(len(newData))
	m.log.Info().Str("generation", m.generation).Uint32("segment", m.walIndex).Uint64("bytes", segmentSize).Msg("WAL segment uploaded")

	m.manifest.AddSegment(m.walIndex, nowMs(), m.walOffset, segmentSize)
	if err := m.uploadManifest(ctx); err != nil {
		return false, err
	}

	m.stats.RecordSync(uint64(len(encoded)))
	m.walOffset = walLen
	m.walIndex++
	return true, nil
}

// checkWALDiscontinuity reports whether the WAL shrank below the offset we
// had already synced, or was restarted with a different header salt —
// either means frames we haven't uploaded yet may be gone.
func checkWALDiscontinuity(walOffset uint64, walHeaderSalt *[walSaltLen]byte, data []byte, walLen uint64) bool {
	if walOffset > 0 && walLen < walOffset {
		return true
	}
	if walHeaderSalt != nil && len(data) >= walSaltOffset+walSaltLen {
		current := data[walSaltOffset : walSaltOffset+walSaltLen]
		if !bytesEqual(current, walHeaderSalt[:]) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Recover ends the current pinning transaction, starts a fresh generation
// with a new snapshot, and re-pins the WAL. It is triggered automatically
// by SyncWAL on discontinuity.
func (m *Manager) Recover(ctx context.Context) error {
	m.log.Info().Msg("recovering: ending current transaction and starting new generation")

	if err := m.reader.EndPin(); err != nil {
		m.log.Warn().Err(err).Msg("end pin failed during recovery")
	}

	m.generation = uuid.New().String()
	m.manifest = manifest.New(m.generation, nowMs())
	m.stats.RecordNewGeneration()

	if err := m.Snapshot(ctx); err != nil {
		return err
	}

	if err := m.reader.BeginPin(ctx); err != nil {
		return err
	}

	m.log.Info().Str("generation", m.generation).Msg("recovery complete, new generation")
	return nil
}

// Checkpoint flushes the WAL into the main database file, then starts a
// fresh generation with a snapshot of the now fully up-to-date database.
func (m *Manager) Checkpoint(ctx context.Context) error {
	if _, err := m.SyncWAL(ctx); err != nil {
		return err
	}

	if err := m.reader.EndPin(); err != nil {
		return err
	}

	if err := m.reader.CheckpointTruncate(ctx); err != nil {
		return err
	}

	m.generation = uuid.New().String()
	m.manifest = manifest.New(m.generation, nowMs())
	m.stats.RecordNewGeneration()

	if err := m.Snapshot(ctx); err != nil {
		return err
	}

	if err := m.reader.BeginPin(ctx); err != nil {
		return err
	}

	m.log.Info().Str("generation", m.generation).Msg("checkpoint complete, new generation")
	return nil
}

// MaybeSnapshot checkpoints the database if a scheduled snapshot is due. It
// returns true if a checkpoint was taken.
func (m *Manager) MaybeSnapshot(ctx context.Context) (bool, error) {
	if m.cfg.SnapshotInterval == nil {
		return false, nil
	}
	if time.Since(m.lastSnapshotTime) < *m.cfg.SnapshotInterval {
		return false, nil
	}
	if err := m.Checkpoint(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Generation returns the id of the generation currently being written to.
func (m *Manager) Generation() string {
	return m.generation
}

// Stats returns a point-in-time snapshot of operational counters.
func (m *Manager) Stats() stats.Stats {
	return m.stats.Snapshot()
}

// Shutdown performs a final best-effort WAL sync and releases the pinning
// transaction. It is idempotent; calling it more than once is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.shutdownComplete {
		return nil
	}

	m.log.Info().Msg("shutting down: performing final WAL sync")

	if _, err := m.SyncWAL(ctx); err != nil {
		m.log.Warn().Err(err).Msg("final WAL sync failed during shutdown")
		m.stats.RecordError()
	}

	m.reader.EndPin()
	m.reader.Close()

	m.shutdownComplete = true
	runtime.SetFinalizer(m, nil)
	m.log.Info().Msg("shutdown complete")
	return nil
}

// EnforceRetention deletes generations older than the configured retention
// duration, never touching the current generation. It returns the number
// of generations deleted. A nil RetentionDuration disables pruning.
func (m *Manager) EnforceRetention(ctx context.Context) (uint32, error) {
	if m.cfg.RetentionDuration == nil {
		return 0, nil
	}

	cutoffMs := saturatingSub(nowMs(), uint64(m.cfg.RetentionDuration.Milliseconds()))
	manifests, err := m.listGenerationManifests(ctx)
	if err != nil {
		return 0, err
	}

	var deleted uint32
	for genID, man := range manifests {
		if genID == m.generation {
			continue
		}
		if man.CreatedAtMs < cutoffMs {
			if err := m.deleteGeneration(ctx, genID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}

	if deleted > 0 {
		m.log.Info().Uint32("deleted", deleted).Msg("retention: deleted old generations")
	}
	return deleted, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func (m *Manager) listGenerationManifests(ctx context.Context) (map[string]*manifest.Manifest, error) {
	allKeys, err := m.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	manifests := make(map[string]*manifest.Manifest)
	for _, key := range allKeys {
		if !strings.HasSuffix(key, "/manifest.json") {
			continue
		}
		genID := strings.TrimSuffix(key, "/manifest.json")
		data, err := m.store.Get(ctx, key)
		if err != nil {
			continue
		}
		man, err := manifest.Unmarshal(data)
		if err != nil {
			continue
		}
		manifests[genID] = man
	}
	return manifests, nil
}

func (m *Manager) deleteGeneration(ctx context.Context, genID string) error {
	prefix := genID + "/"
	keys, err := m.store.List(ctx, prefix)
	if err != nil {
		return err
	}
	if err := m.store.DeleteAll(ctx, keys); err != nil {
		return err
	}
	m.log.Info().Str("generation", genID).Int("objects", len(keys)).Msg("generation deleted")
	return nil
}

// Compact merges every WAL segment in the current generation into fewer,
// larger segments capped at maxSegmentSize bytes (4MiB if nil). It refuses
// to run while a sync is competing for the same generation's segment
// index and vice versa.
func (m *Manager) Compact(ctx context.Context, maxSegmentSize *int) (CompactionResult, error) {
	if m.compacting {
		return CompactionResult{}, common.New(common.ErrLogical, "compaction already in progress")
	}
	m.compacting = true
	defer func() { m.compacting = false }()

	maxSize := 4 * 1024 * 1024
	if maxSegmentSize != nil {
		maxSize = *maxSegmentSize
	}

	walPrefix := m.generation + "/wal/"
	segmentKeys, err := m.store.List(ctx, walPrefix)
	if err != nil {
		return CompactionResult{}, err
	}

	if len(segmentKeys) <= 1 {
		n := uint32(len(segmentKeys))
		return CompactionResult{SegmentsBefore: n, SegmentsAfter: n}, nil
	}
	segmentsBefore := uint32(len(segmentKeys))

	var allData []byte
	for _, key := range segmentKeys {
		data, err := m.store.Get(ctx, key)
		if err != nil {
			return CompactionResult{}, err
		}
		decoded, err := m.pipelineDecode(data)
		if err != nil {
			return CompactionResult{}, err
		}
		allData = append(allData, decoded...)
	}

	if err := m.store.DeleteAll(ctx, segmentKeys); err != nil {
		return CompactionResult{}, err
	}

	var newIndex uint32
	var newSegments []manifest.Segment
	offset := 0
	for offset < len(allData) {
		end := offset + maxSize
		if end > len(allData) {
			end = len(allData)
		}
		chunk := allData[offset:end]
		encoded, err := m.pipelineEncode(chunk)
		if err != nil {
			return CompactionResult{}, err
		}
		key := fmt.Sprintf("%s/wal/%08d", m.generation, newIndex)
		if err := m.store.Put(ctx, key, encoded); err != nil {
			return CompactionResult{}, err
		}
		newSegments = append(newSegments, manifest.Segment{
			Index:       newIndex,
			TimestampMs: nowMs(),
			Offset:      uint64(offset),
			Size:        uint64(len(chunk)),
		})
		offset = end
		newIndex++
	}

	segmentsAfter := newIndex
	m.manifest.Segments = newSegments
	if err := m.uploadManifest(ctx); err != nil {
		return CompactionResult{}, err
	}
	m.walIndex = newIndex

	m.log.Info().Uint32("before", segmentsBefore).Uint32("after", segmentsAfter).Msg("compaction complete")
	return CompactionResult{SegmentsBefore: segmentsBefore, SegmentsAfter: segmentsAfter}, nil
}

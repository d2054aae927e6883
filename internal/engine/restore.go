package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/walguard/walguard/internal/codec"
	"github.com/walguard/walguard/internal/common"
	"github.com/walguard/walguard/internal/dbfile"
	"github.com/walguard/walguard/internal/manifest"
	"github.com/walguard/walguard/internal/objectstore"
)

type restoreOptions struct {
	pipelineCfg codec.PipelineConfig
}

// RestoreOption configures how restored snapshot and WAL bytes are decoded.
type RestoreOption func(*restoreOptions)

// WithDecodeConfig sets the compression/encryption pipeline used to decode
// downloaded objects. Omit it to restore backups stored uncompressed and
// unencrypted.
func WithDecodeConfig(pc codec.PipelineConfig) RestoreOption {
	return func(o *restoreOptions) { o.pipelineCfg = pc }
}

func resolveOptions(opts []RestoreOption) restoreOptions {
	var o restoreOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Restore downloads the latest generation's snapshot and WAL segments to
// targetPath, replaying the WAL so the restored file reflects every synced
// byte.
func Restore(ctx context.Context, s3Cfg objectstore.Config, targetPath string, opts ...RestoreOption) error {
	store, err := objectstore.NewS3Store(ctx, s3Cfg)
	if err != nil {
		return err
	}
	return restoreLatest(ctx, store, resolveOptions(opts), targetPath)
}

// RestoreToTime downloads the latest generation whose snapshot was taken at
// or before timestampMs, replaying only the WAL segments recorded up to
// that point.
func RestoreToTime(ctx context.Context, s3Cfg objectstore.Config, targetPath string, timestampMs uint64, opts ...RestoreOption) error {
	store, err := objectstore.NewS3Store(ctx, s3Cfg)
	if err != nil {
		return err
	}
	return restorePITR(ctx, store, resolveOptions(opts), targetPath, timestampMs)
}

func restoreLatest(ctx context.Context, store objectstore.Store, opts restoreOptions, targetPath string) error {
	genBytes, err := store.Get(ctx, "latest")
	if err != nil {
		return common.Wrap(common.ErrLogical, "no backup found: 'latest' marker missing", err)
	}
	generation := string(genBytes)

	if err := downloadSnapshot(ctx, store, opts, generation, targetPath); err != nil {
		return err
	}

	segmentKeys, err := store.List(ctx, generation+"/wal/")
	if err != nil {
		return err
	}
	if len(segmentKeys) > 0 {
		if err := downloadAndWriteWAL(ctx, store, opts, segmentKeys, targetPath); err != nil {
			return err
		}
	}

	if err := dbfile.OpenAndCheckpointTruncate(ctx, targetPath); err != nil {
		return err
	}
	return nil
}

func restorePITR(ctx context.Context, store objectstore.Store, opts restoreOptions, targetPath string, timestampMs uint64) error {
	allKeys, err := store.List(ctx, "")
	if err != nil {
		return err
	}

	var manifests []*manifest.Manifest
	for _, key := range allKeys {
		if !strings.HasSuffix(key, "/manifest.json") {
			continue
		}
		data, err := store.Get(ctx, key)
		if err != nil {
			continue
		}
		m, err := manifest.Unmarshal(data)
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}

	if len(manifests) == 0 {
		return common.New(common.ErrLogical, "no manifests found for point-in-time restore")
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].SnapshotTimestampMs > manifests[j].SnapshotTimestampMs
	})

	var target *manifest.Manifest
	for _, m := range manifests {
		if m.SnapshotTimestampMs <= timestampMs {
			target = m
			break
		}
	}
	if target == nil {
		return common.New(common.ErrLogical, fmt.Sprintf("no generation found with snapshot before timestamp %d", timestampMs))
	}

	if err := downloadSnapshot(ctx, store, opts, target.Generation, targetPath); err != nil {
		return err
	}

	var replayKeys []string
	for _, seg := range target.Segments {
		if seg.TimestampMs <= timestampMs {
			replayKeys = append(replayKeys, fmt.Sprintf("%s/wal/%08d", target.Generation, seg.Index))
		}
	}
	if len(replayKeys) > 0 {
		if err := downloadAndWriteWAL(ctx, store, opts, replayKeys, targetPath); err != nil {
			return err
		}
	}

	return dbfile.OpenAndCheckpointTruncate(ctx, targetPath)
}

func downloadSnapshot(ctx context.Context, store objectstore.Store, opts restoreOptions, generation, targetPath string) error {
	data, err := store.Get(ctx, generation+"/snapshot")
	if err != nil {
		return err
	}
	decoded, err := codec.DecodePipeline(data, opts.pipelineCfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(targetPath, decoded, 0o600); err != nil {
		return common.Wrap(common.ErrLocalIO, "write restored snapshot", err)
	}
	return nil
}

func downloadAndWriteWAL(ctx context.Context, store objectstore.Store, opts restoreOptions, keys []string, targetPath string) error {
	var walData []byte
	for _, key := range keys {
		data, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		decoded, err := codec.DecodePipeline(data, opts.pipelineCfg)
		if err != nil {
			return err
		}
		walData = append(walData, decoded...)
	}
	if err := os.WriteFile(targetPath+"-wal", walData, 0o600); err != nil {
		return common.Wrap(common.ErrLocalIO, "write restored wal", err)
	}
	return nil
}

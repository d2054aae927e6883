// Package objectstore provides namespaced key/value access to a remote
// S3-compatible bucket with bounded retry/backoff, used by the backup
// engine to store snapshots, WAL segments, manifests, and the latest
// generation pointer.
package objectstore

import (
	"context"

	"github.com/walguard/walguard/internal/common"
)

// ErrNotFound is returned (wrapped in a *common.Error) when Get targets a
// key that does not exist.
var ErrNotFound = common.New(common.ErrObjectStore, "object not found")

// Store is the narrow contract the backup engine needs from an object
// store. All operations retry transport/server errors internally; callers
// only see the final outcome.
type Store interface {
	// Put idempotently overwrites key with data. Success implies the
	// object is durable.
	Put(ctx context.Context, key string, data []byte) error
	// Get fetches the object at key. Returns ErrNotFound if it doesn't
	// exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// DeleteAll removes every key in keys. Missing objects are not an
	// error.
	DeleteAll(ctx context.Context, keys []string) error
	// List returns keys under prefix, relative to the configured prefix,
	// sorted lexicographically.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config configures an S3-compatible object store client.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

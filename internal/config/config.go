// Package config loads the backup engine's configuration from environment
// variables (optionally seeded from a local .env file), matching the
// product's "credentials passed as flags or environment variables" surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/walguard/walguard/internal/codec"
	"github.com/walguard/walguard/internal/objectstore"
)

// S3Config is the object store connection surface.
type S3Config = objectstore.Config

// Config is the complete configuration surface of a running backup engine.
type Config struct {
	DBPath                   string
	S3                       S3Config
	SyncInterval             time.Duration
	CheckpointThresholdBytes uint64
	// RetentionDuration is nil when old generations are kept forever.
	RetentionDuration *time.Duration
	Compression       codec.Algorithm
	// EncryptionKey is nil when backups are stored unencrypted.
	EncryptionKey *string
	AutoRestore   bool
	// SnapshotInterval is nil when snapshots are only taken on startup and
	// at checkpoint/recovery time, never on a fixed schedule.
	SnapshotInterval *time.Duration
}

// Default returns a Config with the same defaults as a freshly zeroed
// engine: a 1-second sync interval, a 4MiB checkpoint threshold, no
// retention limit, no compression, no encryption, auto-restore disabled,
// and no scheduled snapshots.
func Default() Config {
	return Config{
		SyncInterval:             time.Second,
		CheckpointThresholdBytes: 4 * 1024 * 1024,
		Compression:              codec.None,
	}
}

// Load builds a Config from environment variables, falling back to Default
// for anything unset. It loads a .env file from the working directory
// first, if present, so local development doesn't require exporting every
// variable by hand.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.DBPath = getEnvString("WALGUARD_DB_PATH", cfg.DBPath)

	cfg.S3 = S3Config{
		Endpoint:  getEnvString("WALGUARD_S3_ENDPOINT", ""),
		Region:    getEnvString("WALGUARD_S3_REGION", "us-east-1"),
		Bucket:    getEnvString("WALGUARD_S3_BUCKET", ""),
		AccessKey: getEnvString("S3_ACCESS_KEY", ""),
		SecretKey: getEnvString("S3_SECRET_KEY", ""),
		Prefix:    getEnvString("WALGUARD_S3_PREFIX", ""),
	}

	if v, ok := getEnvDuration("WALGUARD_SYNC_INTERVAL"); ok {
		cfg.SyncInterval = v
	}
	if v, ok := getEnvUint64("WALGUARD_CHECKPOINT_THRESHOLD_BYTES"); ok {
		cfg.CheckpointThresholdBytes = v
	}
	if v, ok := getEnvDuration("WALGUARD_RETENTION_DURATION"); ok {
		cfg.RetentionDuration = &v
	}
	if v, ok := getEnvDuration("WALGUARD_SNAPSHOT_INTERVAL"); ok {
		cfg.SnapshotInterval = &v
	}
	switch getEnvString("WALGUARD_COMPRESSION", "none") {
	case "lz4":
		cfg.Compression = codec.Lz4
	case "zstd":
		cfg.Compression = codec.Zstd
	default:
		cfg.Compression = codec.None
	}
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		cfg.EncryptionKey = &key
	}
	cfg.AutoRestore = getEnvBool("WALGUARD_AUTO_RESTORE", false)

	return cfg, nil
}

// Validate checks that the configuration is complete enough to run the
// engine against.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.CheckpointThresholdBytes == 0 {
		return fmt.Errorf("checkpoint threshold bytes must be positive")
	}
	return nil
}

// String returns a pretty-printed JSON representation of the config, with
// secrets redacted.
func (c Config) String() string {
	redacted := c
	redacted.S3.AccessKey = redactIfSet(c.S3.AccessKey)
	redacted.S3.SecretKey = redactIfSet(c.S3.SecretKey)
	if c.EncryptionKey != nil {
		r := redactIfSet(*c.EncryptionKey)
		redacted.EncryptionKey = &r
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}

func redactIfSet(v string) string {
	if v == "" {
		return ""
	}
	return "REDACTED"
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string) (uint64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvDuration(key string) (time.Duration, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false
	}
	return d, true
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walguard/walguard/internal/codec"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Second, cfg.SyncInterval)
	assert.EqualValues(t, 4*1024*1024, cfg.CheckpointThresholdBytes)
	assert.Nil(t, cfg.RetentionDuration)
	assert.Equal(t, codec.None, cfg.Compression)
	assert.False(t, cfg.AutoRestore)
	assert.Nil(t, cfg.SnapshotInterval)
	assert.Nil(t, cfg.EncryptionKey)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("WALGUARD_DB_PATH", "/tmp/app.db")
	t.Setenv("WALGUARD_S3_BUCKET", "backups")
	t.Setenv("WALGUARD_S3_ENDPOINT", "http://localhost:3900")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("WALGUARD_SYNC_INTERVAL", "2s")
	t.Setenv("WALGUARD_RETENTION_DURATION", "168h")
	t.Setenv("WALGUARD_COMPRESSION", "zstd")
	t.Setenv("ENCRYPTION_KEY", "passphrase")
	t.Setenv("WALGUARD_AUTO_RESTORE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/app.db", cfg.DBPath)
	assert.Equal(t, "backups", cfg.S3.Bucket)
	assert.Equal(t, "http://localhost:3900", cfg.S3.Endpoint)
	assert.Equal(t, "ak", cfg.S3.AccessKey)
	assert.Equal(t, "sk", cfg.S3.SecretKey)
	assert.Equal(t, 2*time.Second, cfg.SyncInterval)
	require.NotNil(t, cfg.RetentionDuration)
	assert.Equal(t, 168*time.Hour, *cfg.RetentionDuration)
	assert.Equal(t, codec.Zstd, cfg.Compression)
	require.NotNil(t, cfg.EncryptionKey)
	assert.Equal(t, "passphrase", *cfg.EncryptionKey)
	assert.True(t, cfg.AutoRestore)
}

func TestValidateRequiresDBPathAndBucket(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.DBPath = "/tmp/app.db"
	assert.Error(t, cfg.Validate())

	cfg.S3.Bucket = "backups"
	assert.NoError(t, cfg.Validate())
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.DBPath = "/tmp/app.db"
	cfg.S3.Bucket = "backups"
	cfg.S3.AccessKey = "super-secret-key"
	key := "passphrase"
	cfg.EncryptionKey = &key

	out := cfg.String()
	assert.NotContains(t, out, "super-secret-key")
	assert.NotContains(t, out, "passphrase")
	assert.Contains(t, out, "REDACTED")
}

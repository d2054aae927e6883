package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) *string { return &s }

func TestPipelineRoundtripNoEncryption(t *testing.T) {
	cfg := PipelineConfig{Compression: Zstd}
	data := []byte("a payload that should survive the round trip")

	encoded, err := EncodePipeline(data, cfg)
	require.NoError(t, err)
	decoded, err := DecodePipeline(encoded, cfg)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestPipelineRoundtripWithEncryption(t *testing.T) {
	cfg := PipelineConfig{Compression: Lz4, EncryptionKey: key("passphrase")}
	data := []byte("a payload that is both compressed and encrypted")

	encoded, err := EncodePipeline(data, cfg)
	require.NoError(t, err)
	decoded, err := DecodePipeline(encoded, cfg)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestPipelineRoundtripNoop(t *testing.T) {
	cfg := PipelineConfig{Compression: None}
	data := []byte("plain")

	encoded, err := EncodePipeline(data, cfg)
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
	decoded, err := DecodePipeline(encoded, cfg)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressNonePassthrough(t *testing.T) {
	data := []byte("hello world")
	result, err := Compress(data, None)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestCompressLz4PrependsMagic(t *testing.T) {
	data := []byte("some data to compress with lz4")
	result, err := Compress(data, Lz4)
	require.NoError(t, err)
	assert.Equal(t, magicLz4[:], result[:4])
	assert.NotEqual(t, data, result[4:])
}

func TestCompressZstdPrependsMagic(t *testing.T) {
	data := []byte("some data to compress with zstd")
	result, err := Compress(data, Zstd)
	require.NoError(t, err)
	assert.Equal(t, magicZstd[:], result[:4])
}

func TestDecompressShortDataPassthrough(t *testing.T) {
	data := []byte("abc")
	result, err := Decompress(data)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestDecompressEmptyPassthrough(t *testing.T) {
	result, err := Decompress([]byte{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestDecompressUnknownMagicPassthrough(t *testing.T) {
	data := []byte("XXXX some random data here")
	result, err := Decompress(data)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestLz4Roundtrip(t *testing.T) {
	data := []byte("roundtrip test data for lz4 compression")
	compressed, err := Compress(data, Lz4)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestZstdRoundtrip(t *testing.T) {
	data := []byte("roundtrip test data for zstd compression")
	compressed, err := Compress(data, Zstd)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestDecompressByMagicIgnoresCallerDeclaredAlgorithm(t *testing.T) {
	// Property 2: decode is by magic, not by caller-declared config.
	data := []byte("decoded regardless of what the caller claims")
	compressed, err := Compress(data, Zstd)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestCompressNoneEmptyData(t *testing.T) {
	result, err := Compress([]byte{}, None)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestDecompressExactly4BytesNonMagicPassthrough(t *testing.T) {
	data := []byte("ABCD")
	result, err := Decompress(data)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestLz4EmptyDataRoundtrip(t *testing.T) {
	compressed, err := Compress([]byte{}, Lz4)
	require.NoError(t, err)
	assert.Equal(t, magicLz4[:], compressed[:4])
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestZstdEmptyDataRoundtrip(t *testing.T) {
	compressed, err := Compress([]byte{}, Zstd)
	require.NoError(t, err)
	assert.Equal(t, magicZstd[:], compressed[:4])
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

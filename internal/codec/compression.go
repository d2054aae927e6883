// Package codec implements the self-describing encode/decode pipeline used
// for every object the backup engine writes to the object store: snapshots
// and WAL segments are compressed, then optionally encrypted, with magic
// byte framing so a reader can detect the algorithm without being told.
package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/walguard/walguard/internal/common"
)

// Algorithm selects the compression codec applied to snapshots and WAL
// segments before upload.
type Algorithm int

const (
	// None performs no compression; Compress returns the input verbatim.
	None Algorithm = iota
	// Lz4 compresses with LZ4, favoring speed over ratio.
	Lz4
	// Zstd compresses with zstd, favoring ratio over speed.
	Zstd
)

var (
	magicLz4  = [4]byte{0x43, 0x4f, 0x4d, 0x01}
	magicZstd = [4]byte{0x43, 0x4f, 0x4d, 0x02}
)

// Compress encodes data with the given algorithm, prepending a 4-byte magic
// prefix that identifies it. None returns the input unchanged with no
// prefix.
func Compress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case None:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case Lz4:
		compressed, err := compressLz4(data)
		if err != nil {
			return nil, common.Wrap(common.ErrCodec, "lz4 compress", err)
		}
		return append(magicLz4[:], compressed...), nil
	case Zstd:
		compressed, err := compressZstd(data)
		if err != nil {
			return nil, common.Wrap(common.ErrCodec, "zstd compress", err)
		}
		return append(magicZstd[:], compressed...), nil
	default:
		return nil, common.New(common.ErrLogical, "unknown compression algorithm")
	}
}

// Decompress auto-detects the algorithm from the magic prefix and decodes
// accordingly. Input shorter than the magic length, or whose first 4 bytes
// don't match a known magic, is returned unchanged (passthrough).
func Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	var magic [4]byte
	copy(magic[:], data[:4])

	switch magic {
	case magicLz4:
		out, err := decompressLz4(data[4:])
		if err != nil {
			return nil, common.Wrap(common.ErrCodec, "lz4 decompress", err)
		}
		return out, nil
	case magicZstd:
		out, err := decompressZstd(data[4:])
		if err != nil {
			return nil, common.Wrap(common.ErrCodec, "zstd decompress", err)
		}
		return out, nil
	default:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
}

func compressLz4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLz4(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitializesCorrectly(t *testing.T) {
	m := New("gen-1", 1000)
	assert.Equal(t, "gen-1", m.Generation)
	assert.EqualValues(t, 1000, m.CreatedAtMs)
	assert.EqualValues(t, 1000, m.SnapshotTimestampMs)
	assert.Empty(t, m.Segments)
}

func TestAddSegmentAppends(t *testing.T) {
	m := New("gen-1", 1000)
	m.AddSegment(0, 1001, 0, 512)
	m.AddSegment(1, 1002, 512, 256)

	require.Len(t, m.Segments, 2)
	assert.EqualValues(t, 0, m.Segments[0].Index)
	assert.EqualValues(t, 0, m.Segments[0].Offset)
	assert.EqualValues(t, 512, m.Segments[0].Size)
	assert.EqualValues(t, 1, m.Segments[1].Index)
	assert.EqualValues(t, 512, m.Segments[1].Offset)
	assert.EqualValues(t, 256, m.Segments[1].Size)
}

func TestSerdeRoundtrip(t *testing.T) {
	m := New("gen-abc", 5000)
	m.AddSegment(0, 5001, 0, 1024)
	m.AddSegment(1, 5002, 1024, 2048)

	data, err := Marshal(m)
	require.NoError(t, err)

	m2, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, m2)
}

func TestEmptyManifestSerdeRoundtrip(t *testing.T) {
	m := New("empty-gen", 0)

	data, err := Marshal(m)
	require.NoError(t, err)

	m2, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, m2)
	assert.Empty(t, m2.Segments)
}

func TestSegmentCoverInvariant(t *testing.T) {
	m := New("gen-cover", 0)
	m.AddSegment(0, 1, 0, 100)
	m.AddSegment(1, 2, 100, 50)
	m.AddSegment(2, 3, 150, 75)

	assert.EqualValues(t, 0, m.Segments[0].Offset)
	for i := 0; i < len(m.Segments)-1; i++ {
		assert.Equal(t, m.Segments[i].Offset+m.Segments[i].Size, m.Segments[i+1].Offset)
	}
}

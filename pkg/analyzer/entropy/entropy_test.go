package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cycle returns n bytes counting 0..255 repeatedly, a perfectly flat histogram
// whenever n is a multiple of 256
func cycle(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf
}

func TestShannon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
		want float64
	}{
		{"empty", nil, 0},
		{"constant", make([]byte, 4096), 0},
		{"two values", []byte{0, 1, 0, 1, 0, 1, 0, 1}, 1},
		{"flat histogram", cycle(256 * 8), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Shannon(tt.buf), 1e-12)
		})
	}
}

func TestFromHistogram_ZeroTotal(t *testing.T) {
	assert.Zero(t, FromHistogram([]int{0, 0, 0}, 0))
}

func TestGlobal(t *testing.T) {
	t.Parallel()

	low := Global(make([]byte, 1024), 7.5)
	assert.Zero(t, low.Value)
	assert.Equal(t, 7.5, low.Threshold)
	assert.False(t, low.Suspicious)

	high := Global(cycle(1024), 7.5)
	assert.InDelta(t, 8.0, high.Value, 1e-12)
	assert.True(t, high.Suspicious)
}

func TestBlocks_FlagsWhenShareAboveRatio(t *testing.T) {
	t.Parallel()

	// Two flat blocks out of four: share 0.5 > 0.25
	buf := append(cycle(2048), make([]byte, 2048)...)
	result := Blocks(buf, 1024, 7.95, 0.25)

	require.Len(t, result.BlockEntropies, 4)
	assert.Equal(t, 4, result.TotalBlocks)
	assert.Equal(t, 2, result.HighEntropyBlocks)
	assert.InDelta(t, 0.5, result.AnomalyScore, 1e-12)
	assert.InDelta(t, 8.0, result.MaxEntropy, 1e-12)
	assert.InDelta(t, 4.0, result.AvgEntropy, 1e-12)
	assert.True(t, result.Suspicious)
}

func TestBlocks_ShareEqualToRatioIsNotSuspicious(t *testing.T) {
	t.Parallel()

	buf := append(cycle(1024), make([]byte, 3072)...)
	result := Blocks(buf, 1024, 7.95, 0.25)

	assert.Equal(t, 1, result.HighEntropyBlocks)
	assert.InDelta(t, 0.25, result.AnomalyScore, 1e-12)
	assert.False(t, result.Suspicious)
}

func TestBlocks_PartialTrailingBlock(t *testing.T) {
	t.Parallel()

	result := Blocks(make([]byte, 2500), 1024, 7.95, 0.25)
	assert.Equal(t, 3, result.TotalBlocks)
	assert.False(t, result.Suspicious)
}

func TestBlocks_Empty(t *testing.T) {
	t.Parallel()

	result := Blocks(nil, 1024, 7.95, 0.25)
	assert.NotNil(t, result.BlockEntropies)
	assert.Empty(t, result.BlockEntropies)
	assert.Zero(t, result.TotalBlocks)
	assert.False(t, result.Suspicious)
}

func TestBlocks_Deterministic(t *testing.T) {
	t.Parallel()

	buf := append(cycle(3000), make([]byte, 1500)...)
	assert.Equal(t, Blocks(buf, 1024, 7.95, 0.25), Blocks(buf, 1024, 7.95, 0.25))
}

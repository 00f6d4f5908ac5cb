package lsb

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPixels(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed))
	pix := make([]byte, n)
	rng.Read(pix)
	return pix
}

func TestAnalyzePlane_FlatPlaneIsClean(t *testing.T) {
	t.Parallel()

	const w, h = 100, 100
	result := AnalyzePlane(make([]byte, w*h*3), PlaneOptions{Format: "png", Channels: 3, PixelCount: w * h})

	assert.Equal(t, "png", result.Format)
	assert.Zero(t, result.LSBEntropy)
	assert.Zero(t, result.TransitionRate)
	assert.Zero(t, result.IndicatorCount)
	assert.Equal(t, 2, result.RequiredIndicators)
	assert.False(t, result.Suspicious)
}

func TestAnalyzePlane_RandomPlaneIsSuspicious(t *testing.T) {
	t.Parallel()

	const w, h = 100, 100
	pix := randomPixels(1, w*h*3)

	for _, lossy := range []bool{false, true} {
		result := AnalyzePlane(pix, PlaneOptions{Format: "png", Channels: 3, PixelCount: w * h, Lossy: lossy})

		assert.True(t, result.PlaneNoise, "lossy=%t", lossy)
		assert.True(t, result.SequentialPattern, "lossy=%t", lossy)
		assert.True(t, result.RandomPattern, "lossy=%t", lossy)
		assert.False(t, result.ChannelImbalance, "lossy=%t", lossy)
		assert.Equal(t, 3, result.IndicatorCount, "lossy=%t", lossy)
		assert.True(t, result.Suspicious, "lossy=%t", lossy)
	}
}

func TestAnalyzePlane_LossyNeedsThreeIndicators(t *testing.T) {
	t.Parallel()

	// Alternating LSBs: plane noise only, the transition rate is ~1
	const w, h = 100, 100
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i & 1)
	}

	lossless := AnalyzePlane(pix, PlaneOptions{Channels: 3, PixelCount: w * h})
	assert.True(t, lossless.PlaneNoise)
	assert.False(t, lossless.SequentialPattern)
	assert.Equal(t, 1, lossless.IndicatorCount)
	assert.False(t, lossless.Suspicious)

	lossy := AnalyzePlane(pix, PlaneOptions{Channels: 3, PixelCount: w * h, Lossy: true})
	assert.Equal(t, 3, lossy.RequiredIndicators)
	assert.False(t, lossy.Suspicious)
}

func TestAnalyzePlane_ChannelImbalance(t *testing.T) {
	t.Parallel()

	const w, h = 60, 60
	pix := randomPixels(3, w*h*3)
	// Red LSBs all set, green LSBs all clear
	for i := 0; i < w*h; i++ {
		pix[i*3] |= 1
		pix[i*3+1] &^= 1
	}

	result := AnalyzePlane(pix, PlaneOptions{Channels: 3, PixelCount: w * h})
	require.Len(t, result.ChannelOnesRatios, 3)
	assert.InDelta(t, 1.0, result.ChannelOnesRatios[0], 1e-12)
	assert.InDelta(t, 0.0, result.ChannelOnesRatios[1], 1e-12)
	assert.True(t, result.ChannelImbalance)
}

func TestAnalyzePlane_GrayHasNoChannelCheck(t *testing.T) {
	t.Parallel()

	result := AnalyzePlane(randomPixels(5, 4096), PlaneOptions{Channels: 1, PixelCount: 4096})
	assert.Nil(t, result.ChannelOnesRatios)
	assert.False(t, result.ChannelImbalance)
}

func TestAnalyzePlane_Empty(t *testing.T) {
	t.Parallel()

	result := AnalyzePlane(nil, PlaneOptions{Channels: 3})
	assert.Zero(t, result.IndicatorCount)
	assert.False(t, result.Suspicious)
}

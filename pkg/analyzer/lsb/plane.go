package lsb

import (
	"math"

	"stegguard/pkg/models"
)

const (
	planeSampleSize       = 10000
	transitionWindow      = 5000
	channelSamplePixels   = 3000
	lossyPlaneEntropy     = 0.97
	losslessPlaneEntropy  = 0.92
	randomPlaneEntropy    = 0.99
	randomTransitionSlack = 0.03
	channelImbalanceLimit = 0.08
)

// PlaneOptions describes the decoded samples handed to AnalyzePlane
type PlaneOptions struct {
	Format     string
	Channels   int  // interleaved samples per pixel
	PixelCount int  // width * height
	Lossy      bool // lossy formats need more evidence
}

// AnalyzePlane scans the LSB plane of interleaved 8-bit samples. It raises up
// to four indicators (plane noise, ~50% transition rate, fully random plane,
// imbalance between the first three channels) and requires two of them on
// lossless formats and three on lossy ones.
func AnalyzePlane(pix []byte, opts PlaneOptions) *models.AdvancedLSBResult {
	required := 2
	entropyThreshold := losslessPlaneEntropy
	low, high := 0.40, 0.60
	if opts.Lossy {
		required = 3
		entropyThreshold = lossyPlaneEntropy
		low, high = 0.45, 0.55
	}

	result := &models.AdvancedLSBResult{
		Format:             opts.Format,
		RequiredIndicators: required,
	}

	n := min(planeSampleSize, opts.PixelCount*opts.Channels, len(pix))
	if n <= 0 {
		return result
	}

	ones := 0
	for _, b := range pix[:n] {
		ones += int(b & 1)
	}
	p := float64(ones) / float64(n)
	result.LSBEntropy = calculateEntropy(1-p, p)
	result.PlaneNoise = result.LSBEntropy > entropyThreshold

	window := min(transitionWindow, n)
	transitions := 0
	for i := 1; i < window; i++ {
		if pix[i]&1 != pix[i-1]&1 {
			transitions++
		}
	}
	result.TransitionRate = float64(transitions) / float64(window)
	result.SequentialPattern = result.TransitionRate > low && result.TransitionRate < high
	result.RandomPattern = result.LSBEntropy > randomPlaneEntropy &&
		math.Abs(result.TransitionRate-0.5) < randomTransitionSlack

	if opts.Channels >= 3 {
		pixels := min(channelSamplePixels, opts.PixelCount, len(pix)/opts.Channels)
		if pixels > 0 {
			ratios := make([]float64, 3)
			for c := 0; c < 3; c++ {
				count := 0
				for i := 0; i < pixels; i++ {
					count += int(pix[i*opts.Channels+c] & 1)
				}
				ratios[c] = float64(count) / float64(pixels)
			}
			result.ChannelOnesRatios = ratios
			spread := max(ratios[0], ratios[1], ratios[2]) - min(ratios[0], ratios[1], ratios[2])
			result.ChannelImbalance = spread > channelImbalanceLimit
		}
	}

	for _, hit := range []bool{result.PlaneNoise, result.SequentialPattern, result.RandomPattern, result.ChannelImbalance} {
		if hit {
			result.IndicatorCount++
		}
	}
	result.Suspicious = result.IndicatorCount >= required

	return result
}

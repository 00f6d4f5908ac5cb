package image

import (
	"stegguard/pkg/analyzer/entropy"
	"stegguard/pkg/models"
)

const maxCorrelationSamples = 1000

// Interpretations of the average neighbour difference
const (
	CorrelationNatural    = "Natural image correlation"
	CorrelationCompressed = "Compressed or processed image"
	CorrelationAnomalous  = "Anomalous pixel correlation"
)

// PixelCorrelation measures the average absolute difference between the first
// channel of horizontally adjacent pixels. Natural images are smooth, embedded
// noise breaks that smoothness.
func PixelCorrelation(r *Raster, threshold float64) *models.PixelCorrelationResult {
	result := &models.PixelCorrelationResult{Threshold: threshold}

	samples := min(maxCorrelationSamples, r.PixelCount()-1)
	if samples <= 0 || r.Channels <= 0 {
		result.Interpretation = CorrelationNatural
		return result
	}

	total := 0
	for i := 0; i < samples; i++ {
		a := int(r.Pix[i*r.Channels])
		b := int(r.Pix[(i+1)*r.Channels])
		if a > b {
			total += a - b
		} else {
			total += b - a
		}
	}

	avg := float64(total) / float64(samples)
	result.AvgPixelDifference = avg
	result.Samples = samples
	result.Suspicious = avg > threshold

	switch {
	case avg < 15:
		result.Interpretation = CorrelationNatural
	case avg < 30:
		result.Interpretation = CorrelationCompressed
	default:
		result.Interpretation = CorrelationAnomalous
	}
	return result
}

// ChannelEntropies returns the Shannon entropy of each channel and their average
func ChannelEntropies(r *Raster) ([]float64, float64) {
	if r.Channels == 0 {
		return nil, 0
	}

	histograms := make([][256]int, r.Channels)
	for i, v := range r.Pix {
		histograms[i%r.Channels][v]++
	}

	out := make([]float64, r.Channels)
	sum := 0.0
	for c := range histograms {
		out[c] = entropy.FromHistogram(histograms[c][:], r.PixelCount())
		sum += out[c]
	}
	return out, sum / float64(r.Channels)
}

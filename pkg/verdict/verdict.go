// Package verdict turns a ChecksBundle into a single weighted decision with an
// adaptive, media-type and size dependent threshold.
package verdict

import (
	"strings"

	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

// Weight is one applicable signal with its normalized weight
type Weight struct {
	Signal config.Signal
	Value  float64
}

// ApplicableWeights returns the weights that apply to the media type,
// normalized to sum to 1. Image-only signals are dropped for non-image
// types, and so are signals whose weight is zero.
func ApplicableWeights(mimeType string, cfg *config.Config) []Weight {
	isImage := config.IsImage(mimeType)

	var weights []Weight
	total := 0.0
	for _, s := range config.Signals() {
		if s.ImageOnly() && !isImage {
			continue
		}
		w := cfg.Weight(s, mimeType)
		if w <= 0 {
			continue
		}
		weights = append(weights, Weight{Signal: s, Value: w})
		total += w
	}
	if total == 0 {
		return nil
	}
	for i := range weights {
		weights[i].Value /= total
	}
	return weights
}

// DetermineThreshold returns the per-type base threshold adjusted by file
// size and clamped to the configured bounds
func DetermineThreshold(mimeType string, byteLength int64, cfg *config.Config) float64 {
	s := cfg.Sizing
	threshold := cfg.ProfileFor(mimeType).BaseThreshold

	switch {
	case byteLength > s.LargeFileBytes:
		threshold += s.LargeFileDelta
	case byteLength < s.SmallFileBytes:
		threshold += s.SmallFileDelta
	}

	return min(max(threshold, s.MinThreshold), s.MaxThreshold)
}

// Aggregate combines the bundle into a verdict. It is a pure function of its
// inputs.
func Aggregate(bundle *models.ChecksBundle, mimeType string, byteLength int64, cfg *config.Config) models.Verdict {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if bundle == nil {
		bundle = &models.ChecksBundle{}
	}

	v := models.Verdict{
		Threshold:      DetermineThreshold(mimeType, byteLength, cfg),
		Reasons:        []string{},
		ProfileVersion: cfg.Version,
	}

	for _, w := range ApplicableWeights(mimeType, cfg) {
		if fired(bundle, w.Signal) {
			v.Confidence += w.Value
			v.SuspiciousChecks++
		}
	}
	// Summation order can leave the full score a hair below 1
	v.Confidence = min(v.Confidence, 1)
	v.IsSuspicious = v.Confidence >= v.Threshold

	addReasons(&v, bundle)
	return v
}

func fired(b *models.ChecksBundle, s config.Signal) bool {
	img := b.Image
	switch s {
	case config.SignalSignatures:
		return b.Signatures != nil && b.Signatures.Suspicious
	case config.SignalLSB:
		return (b.LSB != nil && b.LSB.Suspicious) ||
			(img != nil && img.AdvancedLSB != nil && img.AdvancedLSB.Suspicious)
	case config.SignalEntropyBlocks:
		return b.EntropyBlocks != nil && b.EntropyBlocks.Suspicious
	case config.SignalPixelCorrelation:
		return img != nil && img.PixelCorrelation != nil && img.PixelCorrelation.Suspicious
	case config.SignalDistribution:
		return b.Distribution != nil && b.Distribution.Suspicious
	case config.SignalMetadata:
		return img != nil && img.Metadata != nil && img.Metadata.Suspicious
	}
	return false
}

// addReasons appends one evidence line per raised flag, most severe first
func addReasons(v *models.Verdict, b *models.ChecksBundle) {
	if sig := b.Signatures; sig != nil && sig.Suspicious {
		v.AddReason("CRITICAL: steganography tool signature detected: %s", strings.Join(sig.Detected, ", "))
	}
	if blk := b.EntropyBlocks; blk != nil && blk.Suspicious {
		v.AddReason("localized high entropy in %d of %d blocks (anomaly score %.2f, max %.3f bits/byte)",
			blk.HighEntropyBlocks, blk.TotalBlocks, blk.AnomalyScore, blk.MaxEntropy)
	}
	if l := b.LSB; l != nil && l.Suspicious {
		v.AddReason("LSB pattern anomaly (bit entropy %.3f, ones ratio %.3f, longest run %d)",
			l.LSBEntropy, l.OnesRatio, l.MaxConsecutiveSame)
	}

	img := b.Image
	if img == nil {
		img = &models.ImageChecks{}
	}
	if pc := img.PixelCorrelation; pc != nil && pc.Suspicious {
		v.AddReason("anomalous pixel correlation (average difference %.2f > %.2f)", pc.AvgPixelDifference, pc.Threshold)
	}
	if d := b.Distribution; d != nil && d.Suspicious {
		v.AddReason("non-uniform byte distribution (chi-square %.1f, critical %.2f)", d.ChiSquare, d.CriticalValue)
	}
	if m := img.Metadata; m != nil && m.Suspicious {
		v.AddReason("metadata anomaly: %s", strings.Join(m.Signals, "; "))
	}
	if a := img.AdvancedLSB; a != nil && a.Suspicious {
		v.AddReason("advanced LSB pattern in %s plane (%d of %d indicators, plane entropy %.3f, transition rate %.3f)",
			a.Format, a.IndicatorCount, a.RequiredIndicators, a.LSBEntropy, a.TransitionRate)
	}
}

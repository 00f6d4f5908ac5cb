// Package lsb analyzes least-significant-bit statistics, both over raw file
// bytes and over the bit plane of decoded pixel samples.
package lsb

import (
	"math"

	"stegguard/pkg/models"
)

const (
	// LSB stream thresholds tuned against LSB-substitution tools
	streamHighEntropy   = 0.88
	streamShortRun      = 4
	streamUnbalanced    = 0.20
	streamWeakerEntropy = 0.85
)

// Analyze extracts the LSB of up to sampleSize leading bytes and measures the
// bit entropy, the longest run of identical bits and the deviation of the
// ones ratio from 0.5.
func Analyze(buf []byte, sampleSize int) *models.LSBResult {
	n := min(sampleSize, len(buf))
	result := &models.LSBResult{SampleSize: max(n, 0)}
	if n <= 0 {
		return result
	}

	ones := 0
	run, longest := 0, 0
	var last byte = 2 // no previous bit
	for _, b := range buf[:n] {
		bit := b & 1
		ones += int(bit)

		if bit == last {
			run++
		} else {
			run = 1
			last = bit
		}
		longest = max(longest, run)
	}

	onesRatio := float64(ones) / float64(n)
	result.OnesRatio = onesRatio
	result.RatioDeviation = math.Abs(onesRatio - 0.5)
	result.LSBEntropy = calculateEntropy(1-onesRatio, onesRatio)
	result.MaxConsecutiveSame = longest

	highEntropy := result.LSBEntropy > streamHighEntropy
	shortRuns := longest < streamShortRun
	unbalanced := result.RatioDeviation > streamUnbalanced

	result.Indicators = models.LSBIndicators{
		HighEntropy:     highEntropy,
		ShortPatterns:   shortRuns,
		UnbalancedRatio: unbalanced,
	}
	result.Suspicious = (highEntropy && shortRuns) ||
		(highEntropy && unbalanced) ||
		(shortRuns && unbalanced && result.LSBEntropy > streamWeakerEntropy)

	return result
}

// calculateEntropy calculates Shannon entropy from probability distribution
func calculateEntropy(zeroProb, oneProb float64) float64 {
	// Avoid log(0) errors
	if zeroProb <= 0 || oneProb <= 0 {
		return 0
	}

	// Shannon entropy formula: -sum(p_i * log2(p_i))
	return -zeroProb*math.Log2(zeroProb) - oneProb*math.Log2(oneProb)
}

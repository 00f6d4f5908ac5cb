// Package distribution tests the byte histogram of a buffer against a uniform
// distribution with a chi-square goodness-of-fit statistic.
package distribution

import (
	"stegguard/pkg/models"
)

// CriticalValue is the chi-square critical value for 255 degrees of freedom at p=0.05
const CriticalValue = 293.25

// ChiSquare computes the statistic over 256 bins and flags the buffer when it
// exceeds margin times the critical value. A buffer made of a single repeated
// byte value carries no information and is never flagged.
func ChiSquare(buf []byte, critical, margin float64) *models.DistributionResult {
	result := &models.DistributionResult{CriticalValue: critical}
	if len(buf) == 0 || critical <= 0 {
		return result
	}

	var histogram [256]int
	for _, b := range buf {
		histogram[b]++
	}

	expected := float64(len(buf)) / 256
	distinct := 0
	chi := 0.0
	for _, observed := range histogram {
		if observed > 0 {
			distinct++
		}
		diff := float64(observed) - expected
		chi += diff * diff / expected
	}

	result.ChiSquare = chi
	result.Uniformity = chi / critical
	result.Suspicious = distinct > 1 && chi > critical*margin
	return result
}

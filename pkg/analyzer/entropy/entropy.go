// Package entropy computes Shannon entropy over whole buffers and fixed-size blocks.
package entropy

import (
	"math"

	"stegguard/pkg/models"
)

// Shannon returns the entropy of the byte histogram of buf in bits per byte (0.0-8.0)
func Shannon(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}

	var histogram [256]int
	for _, b := range buf {
		histogram[b]++
	}
	return FromHistogram(histogram[:], len(buf))
}

// FromHistogram returns the entropy of a frequency table whose counts sum to total
func FromHistogram(histogram []int, total int) float64 {
	if total == 0 {
		return 0
	}

	entropy := 0.0
	n := float64(total)
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Global measures the entropy of the full buffer against a media-type threshold
func Global(buf []byte, threshold float64) *models.EntropyResult {
	value := Shannon(buf)
	return &models.EntropyResult{
		Value:      value,
		Threshold:  threshold,
		Suspicious: value > threshold,
	}
}

// Blocks splits buf into blockSize chunks and flags the buffer when the share of
// chunks above cutoff exceeds ratio. It localizes payloads that the global value
// averages away.
func Blocks(buf []byte, blockSize int, cutoff, ratio float64) *models.BlockEntropyResult {
	result := &models.BlockEntropyResult{
		BlockEntropies: []float64{},
	}
	if len(buf) == 0 || blockSize <= 0 {
		return result
	}

	sum := 0.0
	for start := 0; start < len(buf); start += blockSize {
		end := min(start+blockSize, len(buf))
		e := Shannon(buf[start:end])

		result.BlockEntropies = append(result.BlockEntropies, e)
		sum += e
		if e > result.MaxEntropy {
			result.MaxEntropy = e
		}
		if e > cutoff {
			result.HighEntropyBlocks++
		}
	}

	result.TotalBlocks = len(result.BlockEntropies)
	result.AvgEntropy = sum / float64(result.TotalBlocks)
	result.AnomalyScore = float64(result.HighEntropyBlocks) / float64(result.TotalBlocks)
	result.Suspicious = result.AnomalyScore > ratio

	return result
}

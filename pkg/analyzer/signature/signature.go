// Package signature looks for literal markers left by well-known embedding
// tools and for the statistically distinct tail those tools tend to leave.
package signature

import (
	"bytes"
	"math"

	"stegguard/pkg/analyzer/entropy"
	"stegguard/pkg/models"
)

// Signature is a literal byte marker attributed to an embedding tool
type Signature struct {
	Name    string
	Pattern []byte
}

// Options configures a scan
type Options struct {
	Signatures     []Signature
	TailRegionSize int // trailing region measured by the tail heuristic
	EdgeBlockSize  int // head and tail blocks compared by the asymmetry heuristic
}

const (
	minHeuristicLength = 1000
	tailEntropyLimit   = 7.5
	tailProbeBytes     = 100
	tailHighByte       = 200
	tailHighByteCount  = 15
	asymmetryDelta     = 1.0
	asymmetryTailLimit = 7.3
)

// DefaultSignatures returns the built-in marker table, in reporting order
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "Steghide", Pattern: []byte("STEGHIDE")},
		{Name: "Steghide-Header", Pattern: []byte("sthv")},
		{Name: "OpenStego-Text", Pattern: []byte("OPENSTEGO")},
		{Name: "OutGuess", Pattern: []byte("OUTGUESS")},
		{Name: "F5", Pattern: []byte("F5STEGO")},
	}
}

// DefaultOptions returns the marker table with 1 KB tail and 512 byte edge blocks
func DefaultOptions() Options {
	return Options{
		Signatures:     DefaultSignatures(),
		TailRegionSize: 1024,
		EdgeBlockSize:  512,
	}
}

// Scan searches buf for every marker and applies the tail heuristics to
// buffers longer than 1000 bytes.
func Scan(buf []byte, opts Options) *models.SignatureResult {
	result := &models.SignatureResult{
		Detected: []string{},
	}

	for _, sig := range opts.Signatures {
		if len(sig.Pattern) > 0 && bytes.Contains(buf, sig.Pattern) {
			result.Detected = append(result.Detected, sig.Name)
		}
	}

	if len(buf) > minHeuristicLength {
		tail := buf[len(buf)-min(opts.TailRegionSize, len(buf)):]
		result.TailEntropy = entropy.Shannon(tail)

		// Embedding tools tend to leave a high-entropy tail rich in high bytes
		if result.TailEntropy > tailEntropyLimit {
			high := 0
			for _, b := range tail[len(tail)-min(tailProbeBytes, len(tail)):] {
				if b > tailHighByte {
					high++
				}
			}
			if high > tailHighByteCount {
				result.Detected = append(result.Detected, "OpenStego-Pattern")
			}
		}

		edge := min(opts.EdgeBlockSize, len(buf))
		result.HeadBlockEntropy = entropy.Shannon(buf[:edge])
		result.TailBlockEntropy = entropy.Shannon(buf[len(buf)-edge:])
		if math.Abs(result.HeadBlockEntropy-result.TailBlockEntropy) > asymmetryDelta &&
			result.TailBlockEntropy > asymmetryTailLimit {
			result.Detected = append(result.Detected, "OpenStego-Asymmetric")
		}
	}

	result.Suspicious = len(result.Detected) > 0
	return result
}

package models

import (
	"fmt"
	"time"
)

// EntropyResult holds the global Shannon entropy of a buffer
type EntropyResult struct {
	Value      float64 `json:"value"`     // bits per byte, 0.0-8.0
	Threshold  float64 `json:"threshold"` // media-type specific cutoff
	Suspicious bool    `json:"suspicious"`
}

// BlockEntropyResult holds the per-block entropy scan
type BlockEntropyResult struct {
	BlockEntropies    []float64 `json:"blockEntropies"`
	AvgEntropy        float64   `json:"avgEntropy"`
	MaxEntropy        float64   `json:"maxEntropy"`
	HighEntropyBlocks int       `json:"highEntropyBlocks"`
	TotalBlocks       int       `json:"totalBlocks"`
	AnomalyScore      float64   `json:"anomalyScore"` // fraction of blocks above the cutoff
	Suspicious        bool      `json:"suspicious"`
}

// LSBIndicators lists the individual conditions checked by the LSB stream analysis
type LSBIndicators struct {
	HighEntropy     bool `json:"highEntropy"`
	ShortPatterns   bool `json:"shortPatterns"`
	UnbalancedRatio bool `json:"unbalancedRatio"`
}

// LSBResult holds the least-significant-bit stream statistics of a raw buffer
type LSBResult struct {
	SampleSize         int           `json:"sampleSize"`
	LSBEntropy         float64       `json:"lsbEntropy"` // 0.0-1.0
	OnesRatio          float64       `json:"onesRatio"`
	RatioDeviation     float64       `json:"ratioDeviation"`
	MaxConsecutiveSame int           `json:"maxConsecutiveSame"`
	Indicators         LSBIndicators `json:"indicators"`
	Suspicious         bool          `json:"suspicious"`
}

// SignatureResult holds known-tool signature hits and the tail heuristics
type SignatureResult struct {
	Detected         []string `json:"detected"`
	TailEntropy      float64  `json:"tailEntropy"`
	HeadBlockEntropy float64  `json:"headBlockEntropy"`
	TailBlockEntropy float64  `json:"tailBlockEntropy"`
	Suspicious       bool     `json:"suspicious"`
}

// DistributionResult holds the byte histogram chi-square test against a uniform distribution
type DistributionResult struct {
	ChiSquare     float64 `json:"chiSquare"`
	CriticalValue float64 `json:"criticalValue"`
	Uniformity    float64 `json:"uniformity"` // chiSquare / criticalValue
	Suspicious    bool    `json:"suspicious"`
}

// PixelCorrelationResult holds the horizontal neighbour difference of decoded pixels
type PixelCorrelationResult struct {
	AvgPixelDifference float64 `json:"avgPixelDifference"`
	Samples            int     `json:"samples"`
	Threshold          float64 `json:"threshold"`
	Interpretation     string  `json:"interpretation"`
	Suspicious         bool    `json:"suspicious"`
}

// MetadataResult holds the metadata anomaly scan of an image container
type MetadataResult struct {
	Size       int      `json:"size"` // bytes of metadata payload found in the container
	Software   string   `json:"software,omitempty"`
	Signals    []string `json:"signals"`
	Suspicious bool     `json:"suspicious"`
}

// AdvancedLSBResult holds the multi-indicator LSB plane scan of decoded pixels
type AdvancedLSBResult struct {
	Format             string    `json:"format"`
	LSBEntropy         float64   `json:"lsbEntropy"`
	TransitionRate     float64   `json:"transitionRate"`
	PlaneNoise         bool      `json:"lsbPlaneNoise"`
	SequentialPattern  bool      `json:"sequentialPattern"`
	RandomPattern      bool      `json:"randomPattern"`
	ChannelImbalance   bool      `json:"channelImbalance"`
	ChannelOnesRatios  []float64 `json:"channelOnesRatios,omitempty"`
	IndicatorCount     int       `json:"indicatorCount"`
	RequiredIndicators int       `json:"requiredIndicators"`
	Suspicious         bool      `json:"suspicious"`
}

// ImageChecks is the image-specific sub-bundle. It is only present for image/* types.
type ImageChecks struct {
	Format           string                  `json:"format,omitempty"`
	Width            int                     `json:"width,omitempty"`
	Height           int                     `json:"height,omitempty"`
	Channels         int                     `json:"channels,omitempty"`
	ChannelEntropies []float64               `json:"channelEntropies,omitempty"`
	AvgEntropy       float64                 `json:"avgEntropy,omitempty"`
	EntropyThreshold float64                 `json:"entropyThreshold,omitempty"`
	PixelCorrelation *PixelCorrelationResult `json:"pixelCorrelation,omitempty"`
	Metadata         *MetadataResult         `json:"metadata,omitempty"`
	AdvancedLSB      *AdvancedLSBResult      `json:"advancedLSB,omitempty"`
	Suspicious       bool                    `json:"suspicious"`
	Error            string                  `json:"error,omitempty"`
}

// ChecksBundle collects every signal produced for one analysis request.
// A nil slot means the analyzer did not apply to the media type.
type ChecksBundle struct {
	Entropy       *EntropyResult      `json:"entropy,omitempty"`
	EntropyBlocks *BlockEntropyResult `json:"entropyBlocks,omitempty"`
	LSB           *LSBResult          `json:"lsb,omitempty"`
	Signatures    *SignatureResult    `json:"signatures,omitempty"`
	Distribution  *DistributionResult `json:"distribution,omitempty"`
	Image         *ImageChecks        `json:"image,omitempty"`
}

// Verdict is the aggregated steganography decision for one request
type Verdict struct {
	IsSuspicious     bool     `json:"isSuspicious"`
	Confidence       float64  `json:"confidence"` // 0.0-1.0 weighted score
	Threshold        float64  `json:"threshold"`  // adaptive cutoff
	SuspiciousChecks int      `json:"suspiciousChecks"`
	Reasons          []string `json:"reasons"`
	ProfileVersion   string   `json:"profileVersion"`
}

// AddReason appends a formatted, human readable reason to the verdict
func (v *Verdict) AddReason(format string, args ...interface{}) {
	v.Reasons = append(v.Reasons, fmt.Sprintf(format, args...))
}

// AnalysisReport is what a worker returns for one analysis request
type AnalysisReport struct {
	FileName   string        `json:"fileName"`
	MimeType   string        `json:"mimeType"`
	FileSize   int           `json:"fileSize"`
	AnalyzedAt time.Time     `json:"analyzedAt"`
	Duration   time.Duration `json:"duration"`
	Checks     ChecksBundle  `json:"checks"`
	Verdict    Verdict       `json:"verdict"`
}

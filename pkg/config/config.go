// Package config holds the versioned detection configuration: signal weights,
// per media type thresholds and the analyzer constants. Changing any value
// changes observable verdicts, so every change must bump Version.
package config

import (
	"fmt"
	"maps"
	"math"
	"strings"
)

// DefaultVersion identifies the built-in threshold and weight tables
const DefaultVersion = "1.0.0"

// Signal names one weighted input of the verdict aggregator
type Signal string

const (
	SignalSignatures       Signal = "signatures"
	SignalLSB              Signal = "lsb"
	SignalEntropyBlocks    Signal = "entropyBlocks"
	SignalPixelCorrelation Signal = "pixelCorrelation"
	SignalDistribution     Signal = "distribution"
	SignalMetadata         Signal = "metadata"
)

// Signals returns every weighted signal in weight-table order
func Signals() []Signal {
	return []Signal{
		SignalSignatures,
		SignalLSB,
		SignalEntropyBlocks,
		SignalPixelCorrelation,
		SignalDistribution,
		SignalMetadata,
	}
}

// ImageOnly reports whether the signal can only be measured on decoded pixels
func (s Signal) ImageOnly() bool {
	return s == SignalPixelCorrelation || s == SignalMetadata
}

// Profile holds the thresholds applied to one media type
type Profile struct {
	BaseThreshold           float64            `yaml:"base_threshold"`            // verdict confidence cutoff before size adjustment
	EntropyThreshold        float64            `yaml:"entropy_threshold"`         // global entropy, bits per byte
	ChannelEntropyThreshold float64            `yaml:"channel_entropy_threshold"` // average decoded channel entropy
	PixelDiffThreshold      float64            `yaml:"pixel_diff_threshold"`      // horizontal neighbour difference
	Lossy                   bool               `yaml:"lossy"`
	WeightOverrides         map[Signal]float64 `yaml:"weight_overrides,omitempty"`
}

// Sizing adjusts the verdict threshold by file size
type Sizing struct {
	LargeFileBytes int64   `yaml:"large_file_bytes"`
	LargeFileDelta float64 `yaml:"large_file_delta"`
	SmallFileBytes int64   `yaml:"small_file_bytes"`
	SmallFileDelta float64 `yaml:"small_file_delta"`
	MinThreshold   float64 `yaml:"min_threshold"`
	MaxThreshold   float64 `yaml:"max_threshold"`
}

// AnalysisSettings holds the byte-level analyzer constants
type AnalysisSettings struct {
	BlockSize          int     `yaml:"block_size"`
	BlockEntropyCutoff float64 `yaml:"block_entropy_cutoff"`
	BlockAnomalyRatio  float64 `yaml:"block_anomaly_ratio"`
	LSBSampleSize      int     `yaml:"lsb_sample_size"`
	ChiSquareCritical  float64 `yaml:"chi_square_critical"` // 255 degrees of freedom, p=0.05
	ChiSquareMargin    float64 `yaml:"chi_square_margin"`
	TailRegionSize     int     `yaml:"tail_region_size"`
	EdgeBlockSize      int     `yaml:"edge_block_size"`
}

// Config is the complete, versioned detection configuration
type Config struct {
	Version              string             `yaml:"version"`
	Weights              map[Signal]float64 `yaml:"weights"`
	Default              Profile            `yaml:"default"`
	Profiles             map[string]Profile `yaml:"profiles"`
	Sizing               Sizing             `yaml:"sizing"`
	Analysis             AnalysisSettings   `yaml:"analysis"`
	HardRejectConfidence float64            `yaml:"hard_reject_confidence"`
}

// DefaultConfig returns the built-in configuration tables
func DefaultConfig() *Config {
	lossless := func(base, channel float64) Profile {
		return Profile{
			BaseThreshold:           base,
			EntropyThreshold:        7.85,
			ChannelEntropyThreshold: channel,
			PixelDiffThreshold:      35,
		}
	}
	jpeg := Profile{
		BaseThreshold:           0.70, // lossy compression raises entropy on its own
		EntropyThreshold:        7.95,
		ChannelEntropyThreshold: 7.85,
		PixelDiffThreshold:      35,
		Lossy:                   true,
	}
	webp := lossless(0.62, 7.4)
	webp.Lossy = true

	return &Config{
		Version: DefaultVersion,
		Weights: map[Signal]float64{
			SignalSignatures:       0.40,
			SignalLSB:              0.25,
			SignalEntropyBlocks:    0.15,
			SignalPixelCorrelation: 0.10,
			SignalDistribution:     0.07,
			SignalMetadata:         0.03,
		},
		Default: lossless(0.70, 7.5),
		Profiles: map[string]Profile{
			"image/jpeg":      jpeg,
			"image/jpg":       jpeg,
			"image/png":       lossless(0.45, 7.0),
			"image/bmp":       lossless(0.45, 6.5),
			"image/x-ms-bmp":  lossless(0.45, 6.5),
			"image/x-bmp":     lossless(0.45, 6.5),
			"image/tiff":      lossless(0.45, 7.0),
			"image/gif":       lossless(0.65, 7.6),
			"image/webp":      webp,
			"application/pdf": lossless(0.70, 7.5),
			"video/mp4":       lossless(0.75, 7.5),
			"video/webm":      lossless(0.75, 7.5),
			"audio/mpeg":      lossless(0.65, 7.5),
			"audio/wav":       lossless(0.60, 7.5),
		},
		Sizing: Sizing{
			LargeFileBytes: 10 * 1024 * 1024,
			LargeFileDelta: 0.10,
			SmallFileBytes: 100 * 1024,
			SmallFileDelta: -0.05,
			MinThreshold:   0.50,
			MaxThreshold:   0.90,
		},
		Analysis: AnalysisSettings{
			BlockSize:          1024,
			BlockEntropyCutoff: 7.95,
			BlockAnomalyRatio:  0.25,
			LSBSampleSize:      20000,
			ChiSquareCritical:  293.25,
			ChiSquareMargin:    1.5,
			TailRegionSize:     1024,
			EdgeBlockSize:      512,
		},
		HardRejectConfidence: 0.70,
	}
}

// NormalizeMimeType lower-cases a media type and drops its parameters
func NormalizeMimeType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsImage reports whether the media type is an image/* type
func IsImage(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), "image/")
}

// ProfileFor returns the profile of a media type, or the default profile
func (c *Config) ProfileFor(mimeType string) Profile {
	if p, ok := c.Profiles[NormalizeMimeType(mimeType)]; ok {
		return p
	}
	return c.Default
}

// Weight returns the weight of a signal for a media type, honouring overrides
func (c *Config) Weight(signal Signal, mimeType string) float64 {
	if w, ok := c.ProfileFor(mimeType).WeightOverrides[signal]; ok {
		return w
	}
	return c.Weights[signal]
}

// Clone returns a deep copy so callers can tweak a config without sharing maps
func (c *Config) Clone() *Config {
	out := *c
	out.Weights = maps.Clone(c.Weights)
	out.Default.WeightOverrides = maps.Clone(c.Default.WeightOverrides)
	out.Profiles = make(map[string]Profile, len(c.Profiles))
	for k, p := range c.Profiles {
		p.WeightOverrides = maps.Clone(p.WeightOverrides)
		out.Profiles[k] = p
	}
	return &out
}

// Validate checks that every value is in range
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidConfig)
	}

	total := 0.0
	for _, s := range Signals() {
		w, ok := c.Weights[s]
		if !ok {
			return fmt.Errorf("%w: missing weight for %s", ErrInvalidConfig, s)
		}
		if !inUnit(w) {
			return fmt.Errorf("%w: weight %s=%v outside [0,1]", ErrInvalidConfig, s, w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidConfig)
	}

	if err := c.Default.validate("default"); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		if err := p.validate(name); err != nil {
			return err
		}
	}

	s := c.Sizing
	if !inUnit(s.MinThreshold) || !inUnit(s.MaxThreshold) || s.MinThreshold > s.MaxThreshold {
		return fmt.Errorf("%w: sizing thresholds [%v,%v] invalid", ErrInvalidConfig, s.MinThreshold, s.MaxThreshold)
	}
	if s.SmallFileBytes < 0 || s.LargeFileBytes < s.SmallFileBytes {
		return fmt.Errorf("%w: sizing byte bounds invalid", ErrInvalidConfig)
	}

	a := c.Analysis
	if a.BlockSize <= 0 || a.LSBSampleSize <= 0 || a.TailRegionSize <= 0 || a.EdgeBlockSize <= 0 {
		return fmt.Errorf("%w: analysis sizes must be positive", ErrInvalidConfig)
	}
	if a.ChiSquareCritical <= 0 || a.ChiSquareMargin <= 0 {
		return fmt.Errorf("%w: chi-square settings must be positive", ErrInvalidConfig)
	}
	if !inUnit(a.BlockAnomalyRatio) {
		return fmt.Errorf("%w: block anomaly ratio outside [0,1]", ErrInvalidConfig)
	}

	if c.HardRejectConfidence <= 0 || c.HardRejectConfidence > 1 {
		return fmt.Errorf("%w: hard reject confidence %v outside (0,1]", ErrInvalidConfig, c.HardRejectConfidence)
	}
	return nil
}

func (p Profile) validate(name string) error {
	if p.BaseThreshold <= 0 || p.BaseThreshold > 1 {
		return fmt.Errorf("%w: profile %s base threshold %v outside (0,1]", ErrInvalidConfig, name, p.BaseThreshold)
	}
	if p.EntropyThreshold <= 0 || p.EntropyThreshold > 8 {
		return fmt.Errorf("%w: profile %s entropy threshold %v outside (0,8]", ErrInvalidConfig, name, p.EntropyThreshold)
	}
	if p.PixelDiffThreshold <= 0 {
		return fmt.Errorf("%w: profile %s pixel difference threshold must be positive", ErrInvalidConfig, name)
	}
	for s, w := range p.WeightOverrides {
		if !inUnit(w) {
			return fmt.Errorf("%w: profile %s weight override %s=%v outside [0,1]", ErrInvalidConfig, name, s, w)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

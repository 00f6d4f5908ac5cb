package analyzer

import (
	"context"

	"stegguard/pkg/analyzer/distribution"
	"stegguard/pkg/analyzer/entropy"
	"stegguard/pkg/analyzer/image"
	"stegguard/pkg/analyzer/lsb"
	"stegguard/pkg/analyzer/signature"
	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

// EntropyAnalyzer measures the global entropy of the buffer
type EntropyAnalyzer struct {
	BaseAnalyzer
}

// NewEntropyAnalyzer creates a new global entropy analyzer
func NewEntropyAnalyzer() *EntropyAnalyzer {
	return &EntropyAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("entropy", "Shannon entropy of the whole buffer", nil),
	}
}

// Analyze fills the entropy slot
func (a *EntropyAnalyzer) Analyze(_ context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	bundle.Entropy = entropy.Global(req.Buffer, cfg.ProfileFor(req.MimeType).EntropyThreshold)
	return nil
}

// BlockEntropyAnalyzer looks for localized high-entropy regions
type BlockEntropyAnalyzer struct {
	BaseAnalyzer
}

// NewBlockEntropyAnalyzer creates a new block entropy analyzer
func NewBlockEntropyAnalyzer() *BlockEntropyAnalyzer {
	return &BlockEntropyAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("entropyBlocks", "Entropy of fixed-size blocks", nil),
	}
}

// Analyze fills the entropyBlocks slot
func (a *BlockEntropyAnalyzer) Analyze(_ context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	s := cfg.Analysis
	bundle.EntropyBlocks = entropy.Blocks(req.Buffer, s.BlockSize, s.BlockEntropyCutoff, s.BlockAnomalyRatio)
	return nil
}

// LSBAnalyzer inspects the least significant bit of the leading bytes
type LSBAnalyzer struct {
	BaseAnalyzer
}

// NewLSBAnalyzer creates a new LSB stream analyzer
func NewLSBAnalyzer() *LSBAnalyzer {
	return &LSBAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("lsb", "Least significant bit stream statistics", nil),
	}
}

// Analyze fills the lsb slot
func (a *LSBAnalyzer) Analyze(_ context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	bundle.LSB = lsb.Analyze(req.Buffer, cfg.Analysis.LSBSampleSize)
	return nil
}

// SignatureAnalyzer searches for embedding tool markers
type SignatureAnalyzer struct {
	BaseAnalyzer
	signatures []signature.Signature
}

// NewSignatureAnalyzer creates a new signature analyzer with the built-in marker table
func NewSignatureAnalyzer() *SignatureAnalyzer {
	return NewSignatureAnalyzerWith(signature.DefaultSignatures())
}

// NewSignatureAnalyzerWith creates a signature analyzer with a custom marker table
func NewSignatureAnalyzerWith(signatures []signature.Signature) *SignatureAnalyzer {
	return &SignatureAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("signatures", "Known embedding tool markers and tail heuristics", nil),
		signatures:   signatures,
	}
}

// Analyze fills the signatures slot
func (a *SignatureAnalyzer) Analyze(_ context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	bundle.Signatures = signature.Scan(req.Buffer, signature.Options{
		Signatures:     a.signatures,
		TailRegionSize: cfg.Analysis.TailRegionSize,
		EdgeBlockSize:  cfg.Analysis.EdgeBlockSize,
	})
	return nil
}

// DistributionAnalyzer runs the chi-square uniformity test
type DistributionAnalyzer struct {
	BaseAnalyzer
}

// NewDistributionAnalyzer creates a new byte distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("distribution", "Chi-square test of the byte histogram", nil),
	}
}

// Analyze fills the distribution slot
func (a *DistributionAnalyzer) Analyze(_ context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	bundle.Distribution = distribution.ChiSquare(req.Buffer, cfg.Analysis.ChiSquareCritical, cfg.Analysis.ChiSquareMargin)
	return nil
}

// ImageAnalyzer decodes images and runs the pixel-level checks
type ImageAnalyzer struct {
	BaseAnalyzer
}

// NewImageAnalyzer creates a new image analyzer restricted to image/* types
func NewImageAnalyzer() *ImageAnalyzer {
	return &ImageAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer("image", "Channel entropy, pixel correlation, metadata and LSB plane of decoded images", []string{"image/*"}),
	}
}

// Analyze fills the image slot. Decode failures are recorded in the slot,
// only cancellation is returned.
func (a *ImageAnalyzer) Analyze(ctx context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error {
	checks, err := image.Analyze(ctx, req.Buffer, cfg.ProfileFor(req.MimeType))
	if err != nil {
		return err
	}
	bundle.Image = checks
	return nil
}

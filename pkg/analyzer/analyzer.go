package analyzer

import (
	"context"
	"strings"

	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

/*
Analyzer.go contains the request type, the interface and the base implementation for signal analyzers.
Request: one immutable buffer with its declared media type; analyzers never modify it.
SignalAnalyzer: interface every analyzer implements. Analyze fills exactly one slot of the ChecksBundle.
BaseAnalyzer: struct provides the name, description and media-type matching shared by all analyzers.
Analyzers are pure functions of (buffer, media type, config); two runs over the same input produce the same bundle.
*/

// Request is one analysis request
type Request struct {
	Buffer   []byte
	MimeType string
	FileName string
}

// SignalAnalyzer is the interface that all signal analyzers must implement
type SignalAnalyzer interface {
	// Name returns the bundle slot this analyzer fills
	Name() string

	// Description returns a short description of what the analyzer measures
	Description() string

	// CanAnalyze checks if this analyzer applies to the given media type
	CanAnalyze(mimeType string) bool

	// Analyze measures the request and stores its result in the bundle
	Analyze(ctx context.Context, req *Request, cfg *config.Config, bundle *models.ChecksBundle) error
}

// BaseAnalyzer provides common functionality for analyzers
type BaseAnalyzer struct {
	name        string
	description string
	mediaTypes  []string // exact types or "type/*" patterns; empty matches everything
}

// NewBaseAnalyzer creates a new BaseAnalyzer
func NewBaseAnalyzer(name, description string, mediaTypes []string) BaseAnalyzer {
	return BaseAnalyzer{
		name:        name,
		description: description,
		mediaTypes:  mediaTypes,
	}
}

// Name returns the analyzer name
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Description returns the analyzer description
func (b *BaseAnalyzer) Description() string {
	return b.description
}

// MediaTypes returns the media types the analyzer is restricted to
func (b *BaseAnalyzer) MediaTypes() []string {
	return b.mediaTypes
}

// CanAnalyze checks if the analyzer supports the given media type
func (b *BaseAnalyzer) CanAnalyze(mimeType string) bool {
	if len(b.mediaTypes) == 0 {
		return true
	}
	mt := config.NormalizeMimeType(mimeType)
	for _, pattern := range b.mediaTypes {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(mt, prefix+"/") {
				return true
			}
			continue
		}
		if pattern == mt {
			return true
		}
	}
	return false
}

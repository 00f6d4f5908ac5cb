package analyzer

import (
	"context"
	"fmt"
	"sync"

	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

// Registry is an ordered container of signal analyzers
type Registry struct {
	analyzers []SignalAnalyzer
	mu        sync.RWMutex
}

// NewRegistry creates a new analyzer registry
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry holding every built-in analyzer
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewEntropyAnalyzer())
	r.Register(NewBlockEntropyAnalyzer())
	r.Register(NewLSBAnalyzer())
	r.Register(NewSignatureAnalyzer())
	r.Register(NewDistributionAnalyzer())
	r.Register(NewImageAnalyzer())
	return r
}

// Register adds an analyzer to the registry. Analyzers run in registration order.
func (r *Registry) Register(analyzer SignalAnalyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.analyzers = append(r.analyzers, analyzer)
}

// Analyzers returns every registered analyzer in order
func (r *Registry) Analyzers() []SignalAnalyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]SignalAnalyzer(nil), r.analyzers...)
}

// AnalyzersFor returns the analyzers that apply to the given media type
func (r *Registry) AnalyzersFor(mimeType string) []SignalAnalyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []SignalAnalyzer
	for _, a := range r.analyzers {
		if a.CanAnalyze(mimeType) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the registered analyzer names in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		names = append(names, a.Name())
	}
	return names
}

// Run executes every applicable analyzer against req and returns the filled
// bundle. Cancellation is checked between analyzers, so a cancelled request
// stops after the analyzer that is currently running.
func (r *Registry) Run(ctx context.Context, req *Request, cfg *config.Config) (*models.ChecksBundle, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	bundle := &models.ChecksBundle{}
	for _, a := range r.AnalyzersFor(req.MimeType) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted before %s: %w", a.Name(), err)
		}
		if err := a.Analyze(ctx, req, cfg, bundle); err != nil {
			return nil, fmt.Errorf("analyzer %s failed: %w", a.Name(), err)
		}
	}
	return bundle, nil
}

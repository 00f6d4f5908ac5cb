// Package filesecurity validates uploaded files: size and type policy, magic
// number check, integrity digests and steganography analysis through the
// bounded analysis pool.
package filesecurity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stegguard/pkg/analyzer"
	"stegguard/pkg/config"
	"stegguard/pkg/dispatcher"
	"stegguard/pkg/models"
	"stegguard/pkg/verdict"
)

// DefaultMaxSize is the upload size cap used by DefaultValidateOptions
const DefaultMaxSize = 15 * 1024 * 1024

// ErrNoPool is returned by New when no analysis pool is given
var ErrNoPool = errors.New("filesecurity: analysis pool is required")

// AnalysisPool is the dispatcher pool that runs steganography analyses
type AnalysisPool = dispatcher.Pool[*analyzer.Request, *models.AnalysisReport]

// TimeoutPolicy decides how a timed out steganography analysis affects validation
type TimeoutPolicy int

const (
	// FailOpen records a warning and keeps the file valid
	FailOpen TimeoutPolicy = iota
	// FailClosed records an error and rejects the file
	FailClosed
)

func (p TimeoutPolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// VerdictRecorder receives every completed verdict, for metrics
type VerdictRecorder interface {
	ObserveVerdict(mimeType string, suspicious bool)
}

// Options configures a Service
type Options struct {
	Config         *config.Config
	Logger         *slog.Logger
	TimeoutPolicy  TimeoutPolicy
	Timeout        time.Duration // per-analysis deadline, zero selects the pool default
	Verdicts       VerdictRecorder
	TracerProvider trace.TracerProvider
}

// ValidateOptions selects the checks run by ValidateFile
type ValidateOptions struct {
	MaxSize            int64
	AllowedTypes       []string // nil allows every type
	CheckFileType      bool
	CheckIntegrity     bool
	CheckSteganography bool
	ExpectedSHA256     string // optional, compared by the integrity check
}

// DefaultValidateOptions enables every check with a 15 MiB cap and no allow-list
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MaxSize:            DefaultMaxSize,
		CheckFileType:      true,
		CheckIntegrity:     true,
		CheckSteganography: true,
	}
}

// File is one entry of a batch analysis
type File struct {
	Buffer   []byte
	MimeType string
	FileName string
}

// Service is the validation orchestrator. It owns no global state: the pool
// is built once at startup and handed in.
type Service struct {
	pool     *AnalysisPool
	cfg      *config.Config
	logger   *slog.Logger
	policy   TimeoutPolicy
	timeout  time.Duration
	verdicts VerdictRecorder
	tracer   trace.Tracer
}

// NewAnalysisPool builds the dispatcher pool whose workers run the registry
// and aggregate its bundle into a verdict
func NewAnalysisPool(registry *analyzer.Registry, cfg *config.Config, opts dispatcher.Options) *AnalysisPool {
	if registry == nil {
		registry = analyzer.DefaultRegistry()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	run := func(ctx context.Context, req *analyzer.Request) (*models.AnalysisReport, error) {
		start := time.Now()
		bundle, err := registry.Run(ctx, req, cfg)
		if err != nil {
			return nil, err
		}
		return &models.AnalysisReport{
			FileName:   req.FileName,
			MimeType:   req.MimeType,
			FileSize:   len(req.Buffer),
			AnalyzedAt: start,
			Duration:   time.Since(start),
			Checks:     *bundle,
			Verdict:    verdict.Aggregate(bundle, req.MimeType, int64(len(req.Buffer)), cfg),
		}, nil
	}
	return dispatcher.New(run, opts)
}

// New creates a Service on top of an analysis pool
func New(pool *AnalysisPool, opts Options) (*Service, error) {
	if pool == nil {
		return nil, ErrNoPool
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	return &Service{
		pool:     pool,
		cfg:      opts.Config,
		logger:   opts.Logger.With("component", "filesecurity"),
		policy:   opts.TimeoutPolicy,
		timeout:  opts.Timeout,
		verdicts: opts.Verdicts,
		tracer:   opts.TracerProvider.Tracer("stegguard/filesecurity"),
	}, nil
}

// Config returns the detection configuration in use
func (s *Service) Config() *config.Config {
	return s.cfg
}

// AnalyzeSteganography runs the analyzers on a private copy of buf through
// the pool and waits for the verdict. Timeouts, crashes and a closed pool are
// reported in the returned check, never as a suspicious verdict.
func (s *Service) AnalyzeSteganography(ctx context.Context, buf []byte, mimeType, fileName string) *models.StegoCheck {
	ctx, span := s.tracer.Start(ctx, "filesecurity.analyze_steganography",
		trace.WithAttributes(
			attribute.String("file.name", fileName),
			attribute.String("file.mime_type", mimeType),
			attribute.Int("file.size", len(buf)),
		),
	)
	defer span.End()

	start := time.Now()
	check := &models.StegoCheck{Reasons: []string{}}

	req := &analyzer.Request{
		Buffer:   bytes.Clone(buf),
		MimeType: mimeType,
		FileName: fileName,
	}
	handle, err := s.pool.Submit(req, s.timeout)
	var report *models.AnalysisReport
	if err == nil {
		span.SetAttributes(attribute.String("task.id", handle.ID().String()))
		report, err = handle.Wait(ctx)
	}
	check.Duration = time.Since(start)

	if err != nil {
		check.Error = err.Error()
		check.TimedOut = errors.Is(err, dispatcher.ErrTimeout)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("steganography analysis failed",
			"file", fileName, "mime_type", mimeType, "timed_out", check.TimedOut, "error", err)
		return check
	}

	v := report.Verdict
	check.Success = true
	check.IsSuspicious = v.IsSuspicious
	check.Confidence = v.Confidence
	check.Threshold = v.Threshold
	check.Reasons = v.Reasons
	check.Details = &report.Checks

	span.SetAttributes(
		attribute.Bool("verdict.suspicious", v.IsSuspicious),
		attribute.Float64("verdict.confidence", v.Confidence),
		attribute.Float64("verdict.threshold", v.Threshold),
	)
	if s.verdicts != nil {
		s.verdicts.ObserveVerdict(mimeType, v.IsSuspicious)
	}

	if v.IsSuspicious {
		s.logger.Warn("suspicious file detected",
			"file", fileName, "mime_type", mimeType,
			"confidence", v.Confidence, "threshold", v.Threshold,
			"reasons", strings.Join(v.Reasons, "; "))
	} else {
		s.logger.Info("steganography analysis completed",
			"file", fileName, "mime_type", mimeType,
			"confidence", v.Confidence, "duration", check.Duration)
	}
	return check
}

// AnalyzeMultiple analyzes every file concurrently. The pool bounds the real
// parallelism; results keep the order of files.
func (s *Service) AnalyzeMultiple(ctx context.Context, files []File) []*models.StegoCheck {
	results := make([]*models.StegoCheck, len(files))

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.AnalyzeSteganography(ctx, f.Buffer, f.MimeType, f.FileName)
			return nil
		})
	}
	_ = g.Wait()

	suspicious := 0
	for _, r := range results {
		if r.IsSuspicious {
			suspicious++
		}
	}
	s.logger.Info("batch analysis completed", "files", len(files), "suspicious", suspicious)
	return results
}

// ValidateFile runs the size and allow-list checks, then the enabled file
// type, integrity and steganography checks concurrently. A file failing the
// size or allow-list check is rejected before any analysis is queued. The
// error is non-nil only when ctx ends before validation completes.
func (s *Service) ValidateFile(ctx context.Context, buf []byte, mimeType, fileName string, opts ValidateOptions) (*models.ValidationResult, error) {
	ctx, span := s.tracer.Start(ctx, "filesecurity.validate_file",
		trace.WithAttributes(
			attribute.String("file.name", fileName),
			attribute.String("file.mime_type", mimeType),
			attribute.Int("file.size", len(buf)),
		),
	)
	defer span.End()

	result := models.NewValidationResult()

	if opts.MaxSize > 0 && int64(len(buf)) > opts.MaxSize {
		result.AddError(fmt.Sprintf("File exceeds maximum size (%d bytes)", opts.MaxSize))
	}
	if opts.AllowedTypes != nil && !s.allowed(mimeType, opts.AllowedTypes) {
		result.AddError(fmt.Sprintf("File type %s not allowed", mimeType))
	}
	if !result.IsValid {
		s.logger.Info("file rejected by input policy", "file", fileName, "mime_type", mimeType, "errors", result.Errors)
		span.SetAttributes(attribute.Bool("validation.valid", false))
		return result, nil
	}

	var (
		fileType  *models.FileTypeCheck
		integrity *models.IntegrityCheck
		stego     *models.StegoCheck
	)
	g, gctx := errgroup.WithContext(ctx)
	if opts.CheckFileType {
		g.Go(func() error {
			fileType = ValidateFileType(buf, mimeType)
			return nil
		})
	}
	if opts.CheckIntegrity {
		g.Go(func() error {
			integrity = VerifyIntegrity(buf, opts.ExpectedSHA256)
			return nil
		})
	}
	if opts.CheckSteganography {
		g.Go(func() error {
			stego = s.AnalyzeSteganography(gctx, buf, mimeType, fileName)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("validation of %s interrupted: %w", fileName, err)
	}

	if fileType != nil {
		result.Checks.FileType = fileType
		if !fileType.IsValid {
			result.AddError(fileType.Reason)
		}
	}
	if integrity != nil {
		result.Checks.Integrity = integrity
		if !integrity.IsValid {
			result.AddError("File integrity check failed: SHA-256 does not match the expected digest")
		}
	}
	if stego != nil {
		s.applySteganography(result, stego)
	}

	span.SetAttributes(attribute.Bool("validation.valid", result.IsValid))
	return result, nil
}

// applySteganography turns the analysis outcome into errors and warnings
func (s *Service) applySteganography(result *models.ValidationResult, check *models.StegoCheck) {
	result.Checks.Steganography = check

	switch {
	case check.TimedOut:
		msg := fmt.Sprintf("steganography analysis timed out (%s)", s.policy)
		if s.policy == FailClosed {
			result.AddError(msg)
		} else {
			result.AddWarning(msg)
		}
	case !check.Success:
		result.AddWarning("steganography analysis failed: " + check.Error)
	default:
		if check.IsSuspicious {
			result.AddWarning("Steganography detected: " + strings.Join(check.Reasons, ", "))
		}
		if check.Confidence > s.cfg.HardRejectConfidence {
			result.AddError("File rejected due to high steganography confidence")
		}
	}
}

func (s *Service) allowed(mimeType string, allowedTypes []string) bool {
	mt := config.NormalizeMimeType(mimeType)
	return slices.ContainsFunc(allowedTypes, func(t string) bool {
		return config.NormalizeMimeType(t) == mt
	})
}

// PoolStats returns the analysis pool counters
func (s *Service) PoolStats() dispatcher.Stats {
	return s.pool.Stats()
}

// Shutdown closes the analysis pool, rejecting pending analyses
func (s *Service) Shutdown() {
	s.pool.Shutdown()
	s.logger.Info("analysis pool closed")
}

// Package httpapi exposes the validator and its pool statistics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stegguard/pkg/dispatcher"
	"stegguard/pkg/filesecurity"
	"stegguard/pkg/models"
)

// Validator is the part of filesecurity.Service the API needs
type Validator interface {
	ValidateFile(ctx context.Context, buf []byte, mimeType, fileName string, opts filesecurity.ValidateOptions) (*models.ValidationResult, error)
	PoolStats() dispatcher.Stats
}

// Server serves the validation and operational endpoints
type Server struct {
	validator Validator
	metrics   http.Handler
	opts      filesecurity.ValidateOptions
	logger    *slog.Logger
}

// New creates a Server. metrics may be nil, in which case /metrics is not mounted.
func New(validator Validator, metrics http.Handler, opts filesecurity.ValidateOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		validator: validator,
		metrics:   metrics,
		opts:      opts,
		logger:    logger.With("component", "httpapi"),
	}
}

// Routes returns a chi.Router with every endpoint mounted
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Get("/stats", s.getStats)
	r.Post("/validate", s.postValidate)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.validator.PoolStats())
}

// postValidate validates the raw request body. The declared media type is the
// Content-Type header and the file name comes from X-File-Name. Bodies larger
// than the size cap are cut at cap+1 bytes, which is enough for the size check
// to reject them.
func (s *Server) postValidate(w http.ResponseWriter, r *http.Request) {
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing Content-Type"})
		return
	}
	fileName := r.Header.Get("X-File-Name")
	if fileName == "" {
		fileName = "upload"
	}

	body := io.Reader(r.Body)
	if s.opts.MaxSize > 0 {
		body = io.LimitReader(r.Body, s.opts.MaxSize+1)
	}
	buf, err := io.ReadAll(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	result, err := s.validator.ValidateFile(r.Context(), buf, mimeType, fileName, s.opts)
	if err != nil {
		s.logger.Warn("validation aborted", "file", fileName, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

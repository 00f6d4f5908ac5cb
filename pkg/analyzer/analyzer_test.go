package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

func TestBaseAnalyzer_CanAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mediaTypes []string
		mimeType   string
		want       bool
	}{
		{"empty list matches all", nil, "application/octet-stream", true},
		{"wildcard", []string{"image/*"}, "image/png", true},
		{"wildcard with params", []string{"image/*"}, "Image/PNG; charset=binary", true},
		{"wildcard other family", []string{"image/*"}, "video/mp4", false},
		{"wildcard prefix only", []string{"image/*"}, "imagex/png", false},
		{"exact", []string{"audio/wav"}, "audio/wav", true},
		{"exact miss", []string{"audio/wav"}, "audio/mpeg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseAnalyzer("x", "", tt.mediaTypes)
			assert.Equal(t, tt.want, b.CanAnalyze(tt.mimeType))
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []string{"entropy", "entropyBlocks", "lsb", "signatures", "distribution", "image"}, r.Names())
	assert.Len(t, r.AnalyzersFor("image/png"), 6)
	assert.Len(t, r.AnalyzersFor("application/pdf"), 5)
}

func TestRegistry_Run(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 10*1024)
	copy(buf[5000:], "STEGHIDE")

	t.Run("non-image leaves image slot empty", func(t *testing.T) {
		bundle, err := DefaultRegistry().Run(context.Background(), &Request{Buffer: buf, MimeType: "application/octet-stream"}, nil)
		require.NoError(t, err)
		assert.NotNil(t, bundle.Entropy)
		assert.NotNil(t, bundle.EntropyBlocks)
		assert.NotNil(t, bundle.LSB)
		assert.NotNil(t, bundle.Distribution)
		assert.Nil(t, bundle.Image)
		require.NotNil(t, bundle.Signatures)
		assert.Equal(t, []string{"Steghide"}, bundle.Signatures.Detected)
	})

	t.Run("image type with undecodable bytes", func(t *testing.T) {
		bundle, err := DefaultRegistry().Run(context.Background(), &Request{Buffer: buf, MimeType: "image/png"}, nil)
		require.NoError(t, err)
		require.NotNil(t, bundle.Image)
		assert.NotEmpty(t, bundle.Image.Error)
	})

	t.Run("deterministic", func(t *testing.T) {
		req := &Request{Buffer: buf, MimeType: "image/png"}
		first, err := DefaultRegistry().Run(context.Background(), req, config.DefaultConfig())
		require.NoError(t, err)
		second, err := DefaultRegistry().Run(context.Background(), req, config.DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bundle, err := DefaultRegistry().Run(ctx, &Request{Buffer: buf, MimeType: "image/png"}, nil)
		assert.Nil(t, bundle)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type failingAnalyzer struct {
	BaseAnalyzer
}

func (a *failingAnalyzer) Analyze(context.Context, *Request, *config.Config, *models.ChecksBundle) error {
	return errors.New("boom")
}

func TestRegistry_AnalyzerError(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewEntropyAnalyzer())
	r.Register(&failingAnalyzer{BaseAnalyzer: NewBaseAnalyzer("broken", "always fails", nil)})

	_, err := r.Run(context.Background(), &Request{Buffer: []byte("abc")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer broken failed")
}

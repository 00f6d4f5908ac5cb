package distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChiSquare(t *testing.T) {
	t.Parallel()

	flat := make([]byte, 256*40)
	for i := range flat {
		flat[i] = byte(i)
	}
	skewed := make([]byte, 4096)
	skewed[0] = 0xFF

	tests := []struct {
		name       string
		buf        []byte
		suspicious bool
	}{
		{"empty", nil, false},
		{"single repeated value", make([]byte, 10*1024), false},
		{"flat histogram", flat, false},
		{"skewed histogram", skewed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ChiSquare(tt.buf, CriticalValue, 1.5)
			assert.Equal(t, CriticalValue, result.CriticalValue)
			assert.Equal(t, tt.suspicious, result.Suspicious)
		})
	}
}

func TestChiSquare_Values(t *testing.T) {
	t.Parallel()

	flat := make([]byte, 512)
	for i := range flat {
		flat[i] = byte(i)
	}
	result := ChiSquare(flat, CriticalValue, 1.5)
	assert.Zero(t, result.ChiSquare)
	assert.Zero(t, result.Uniformity)

	// 256 bytes of value 0: expected 1 per bin, observed 256 in one bin and 0 elsewhere
	result = ChiSquare(make([]byte, 256), CriticalValue, 1.5)
	assert.InDelta(t, 255*255+255, result.ChiSquare, 1e-9)
	assert.InDelta(t, result.ChiSquare/CriticalValue, result.Uniformity, 1e-12)
	assert.False(t, result.Suspicious)
}

package filesecurity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFileType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		buf      []byte
		mimeType string
		valid    bool
		reason   string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, "image/jpeg", true, ReasonSignatureValid},
		{"jpg alias", []byte{0xFF, 0xD8, 0xFF, 0xE1}, "image/jpg", true, ReasonSignatureValid},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00"), "image/png", true, ReasonSignatureValid},
		{"png declared as jpeg", []byte("\x89PNG\r\n\x1a\n\x00\x00"), "image/jpeg", false, ReasonSignatureMismatch},
		{"gif87a", []byte("GIF87a.."), "image/gif", true, ReasonSignatureValid},
		{"gif89a", []byte("GIF89a.."), "image/gif", true, ReasonSignatureValid},
		{"bmp", []byte("BM\x00\x00"), "image/x-ms-bmp", true, ReasonSignatureValid},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBPVP8 "), "image/webp", true, ReasonSignatureValid},
		{"wav declared as webp", []byte("RIFF\x10\x00\x00\x00WAVEfmt "), "image/webp", false, ReasonSignatureMismatch},
		{"wav", []byte("RIFF\x10\x00\x00\x00WAVEfmt "), "audio/wav", true, ReasonSignatureValid},
		{"tiff little endian", []byte("II*\x00"), "image/tiff", true, ReasonSignatureValid},
		{"tiff big endian", []byte("MM\x00*"), "image/tiff", true, ReasonSignatureValid},
		{"pdf", []byte("%PDF-1.7"), "application/pdf", true, ReasonSignatureValid},
		{"mp4", []byte("\x00\x00\x00\x18ftypmp42"), "video/mp4", true, ReasonSignatureValid},
		{"mp3 id3", []byte("ID3\x04"), "audio/mpeg", true, ReasonSignatureValid},
		{"mp3 frame", []byte{0xFF, 0xFB, 0x90}, "audio/mpeg", true, ReasonSignatureValid},
		{"ogg", []byte("OggS\x00"), "audio/ogg", true, ReasonSignatureValid},
		{"content type params", []byte("%PDF-1.4"), "Application/PDF; charset=binary", true, ReasonSignatureValid},
		{"short buffer", []byte{0x89, 'P'}, "image/png", false, ReasonSignatureMismatch},
		{"empty buffer", nil, "image/png", false, ReasonSignatureMismatch},
		{"unknown type", []byte("anything"), "application/zip", true, ReasonNoMagicCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ValidateFileType(tt.buf, tt.mimeType)
			assert.Equal(t, tt.valid, check.IsValid)
			assert.Equal(t, tt.reason, check.Reason)
			assert.Equal(t, tt.mimeType, check.ExpectedMimeType)
		})
	}
}

func TestValidateFileType_DetectedHeader(t *testing.T) {
	t.Parallel()

	check := ValidateFileType([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0d"), "image/png")
	assert.Equal(t, "89504e470d0a1a0a", check.DetectedHeader)

	check = ValidateFileType([]byte{0xFF}, "image/jpeg")
	assert.Equal(t, "ff", check.DetectedHeader)
}

func TestHasMagicCheck(t *testing.T) {
	t.Parallel()

	assert.True(t, HasMagicCheck("image/png"))
	assert.True(t, HasMagicCheck("IMAGE/JPEG"))
	assert.False(t, HasMagicCheck("text/plain"))
}

func TestVerifyIntegrity(t *testing.T) {
	t.Parallel()

	const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	check := VerifyIntegrity([]byte("abc"), "")
	assert.True(t, check.IsValid)
	assert.Equal(t, abcSHA256, check.SHA256)
	assert.Len(t, check.SHA512, 128)
	assert.Equal(t, 3, check.Size)

	check = VerifyIntegrity([]byte("abc"), "  BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD ")
	assert.True(t, check.IsValid)

	check = VerifyIntegrity([]byte("abd"), abcSHA256)
	assert.False(t, check.IsValid)
}

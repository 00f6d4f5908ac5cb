package filesecurity

import (
	"bytes"
	"encoding/hex"

	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

// Reasons reported by ValidateFileType
const (
	ReasonSignatureValid    = "Valid file signature"
	ReasonSignatureMismatch = "File signature mismatch"
	ReasonNoMagicCheck      = "No magic number check available"
)

// magicPart is a byte sequence expected at a fixed offset
type magicPart struct {
	offset int
	bytes  []byte
}

// magic matches when every part matches
type magic []magicPart

func (m magic) matches(buf []byte) bool {
	for _, p := range m {
		end := p.offset + len(p.bytes)
		if end > len(buf) || !bytes.Equal(buf[p.offset:end], p.bytes) {
			return false
		}
	}
	return true
}

func at0(b ...byte) magic {
	return magic{{offset: 0, bytes: b}}
}

func riff(form string) magic {
	return magic{{offset: 0, bytes: []byte("RIFF")}, {offset: 8, bytes: []byte(form)}}
}

var (
	jpegMagic = []magic{at0(0xFF, 0xD8, 0xFF)}
	bmpMagic  = []magic{at0('B', 'M')}
)

// magicNumbers maps a media type to the signatures its content may start
// with. Any one signature is enough.
var magicNumbers = map[string][]magic{
	"image/jpeg":      jpegMagic,
	"image/jpg":       jpegMagic,
	"image/png":       {at0(0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A)},
	"image/gif":       {at0('G', 'I', 'F', '8', '7', 'a'), at0('G', 'I', 'F', '8', '9', 'a')},
	"image/bmp":       bmpMagic,
	"image/x-ms-bmp":  bmpMagic,
	"image/x-bmp":     bmpMagic,
	"image/webp":      {riff("WEBP")},
	"image/tiff":      {at0('I', 'I', 0x2A, 0x00), at0('M', 'M', 0x00, 0x2A)},
	"application/pdf": {at0('%', 'P', 'D', 'F')},
	"video/mp4":       {magic{{offset: 4, bytes: []byte("ftyp")}}},
	"video/webm":      {at0(0x1A, 0x45, 0xDF, 0xA3)},
	"audio/mpeg":      {at0('I', 'D', '3'), at0(0xFF, 0xFB), at0(0xFF, 0xF3), at0(0xFF, 0xF2)},
	"audio/wav":       {riff("WAVE")},
	"audio/ogg":       {at0('O', 'g', 'g', 'S')},
}

// HasMagicCheck reports whether ValidateFileType knows a signature for the media type
func HasMagicCheck(mimeType string) bool {
	_, ok := magicNumbers[config.NormalizeMimeType(mimeType)]
	return ok
}

// ValidateFileType compares the leading bytes of buf with the known signatures
// of the declared media type. Types without a table entry pass.
func ValidateFileType(buf []byte, mimeType string) *models.FileTypeCheck {
	check := &models.FileTypeCheck{
		DetectedHeader:   hex.EncodeToString(buf[:min(8, len(buf))]),
		ExpectedMimeType: mimeType,
	}

	magics, ok := magicNumbers[config.NormalizeMimeType(mimeType)]
	if !ok {
		check.IsValid = true
		check.Reason = ReasonNoMagicCheck
		return check
	}

	for _, m := range magics {
		if m.matches(buf) {
			check.IsValid = true
			check.Reason = ReasonSignatureValid
			return check
		}
	}
	check.Reason = ReasonSignatureMismatch
	return check
}

package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"stegguard/pkg/models"
)

const (
	minMetadataSize = 30
	maxMetadataSize = 10000
)

// JPEG markers
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPPF = 0xEF
	markerCOM  = 0xFE
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// SuspiciousSoftware lists authoring tool names that only embedding tools leave behind
var SuspiciousSoftware = []string{"steghide", "openstego", "f5", "stego", "hide"}

var creatorToolPattern = regexp.MustCompile(`(?i)CreatorTool(?:="|>)([^"<]+)`)

// containerMetadata is what the container walkers collect
type containerMetadata struct {
	size     int
	exif     []byte // TIFF-structured EXIF payload, with or without the "Exif\0\0" prefix
	software string
	text     [][]byte // XMP and text chunks
}

// ScanMetadata measures the metadata payload of an image container and flags
// anomalies: stripped metadata on JPEG and PNG, an unusually large payload,
// and an authoring tool named after an embedding tool. GIF, BMP and WebP
// carry no metadata worth measuring, so only the software check applies.
func ScanMetadata(buf []byte, format string) *models.MetadataResult {
	var meta containerMetadata
	walked := false
	switch format {
	case "jpeg":
		meta, walked = walkJPEG(buf), true
	case "png":
		meta, walked = walkPNG(buf), true
	case "tiff":
		meta = containerMetadata{exif: buf}
	}

	result := &models.MetadataResult{
		Size:    meta.size,
		Signals: []string{},
	}

	result.Software = meta.software
	if result.Software == "" {
		result.Software = exifSoftware(meta.exif)
	}
	if result.Software == "" {
		result.Software = xmpCreatorTool(meta.text)
	}

	if walked && result.Size < minMetadataSize {
		result.Signals = append(result.Signals, fmt.Sprintf("metadata stripped or minimal (%d bytes)", result.Size))
	}
	if result.Size > maxMetadataSize {
		result.Signals = append(result.Signals, fmt.Sprintf("unusually large metadata (%d bytes)", result.Size))
	}
	if matchSoftware(result.Software) != "" {
		result.Signals = append(result.Signals, fmt.Sprintf("suspicious software %q", result.Software))
	}

	result.Suspicious = len(result.Signals) > 0
	return result
}

func matchSoftware(software string) string {
	lower := strings.ToLower(software)
	if lower == "" {
		return ""
	}
	for _, tool := range SuspiciousSoftware {
		if strings.Contains(lower, tool) {
			return tool
		}
	}
	return ""
}

// walkJPEG sums the APP1-APP15 and COM segments up to the first scan. The
// JFIF APP0 header is present in every encoder's output and is not counted.
func walkJPEG(buf []byte) containerMetadata {
	var meta containerMetadata
	if len(buf) < 4 || buf[0] != 0xFF || buf[1] != markerSOI {
		return meta
	}

	for i := 2; i+4 <= len(buf); {
		if buf[i] != 0xFF {
			i++
			continue
		}
		marker := buf[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0x00 || marker == 0x01 || (marker >= 0xD0 && marker <= markerSOI):
			i += 2
			continue
		case marker == markerEOI || marker == markerSOS:
			return meta
		}

		length := int(binary.BigEndian.Uint16(buf[i+2 : i+4]))
		if length < 2 || i+2+length > len(buf) {
			return meta
		}
		payload := buf[i+4 : i+2+length]

		switch {
		case marker == markerAPP1:
			meta.size += len(payload)
			if bytes.HasPrefix(payload, []byte("Exif\x00\x00")) && meta.exif == nil {
				meta.exif = payload
			} else {
				meta.text = append(meta.text, payload)
			}
		case marker > markerAPP0 && marker <= markerAPPF:
			meta.size += len(payload)
		case marker == markerCOM:
			meta.size += len(payload)
			meta.text = append(meta.text, payload)
		}
		i += 2 + length
	}
	return meta
}

// walkPNG sums the tEXt, zTXt, iTXt and eXIf chunks
func walkPNG(buf []byte) containerMetadata {
	var meta containerMetadata
	if !bytes.HasPrefix(buf, pngMagic) {
		return meta
	}

	for i := len(pngMagic); i+8 <= len(buf); {
		length := int(binary.BigEndian.Uint32(buf[i : i+4]))
		kind := string(buf[i+4 : i+8])
		end := i + 8 + length
		if length < 0 || end+4 > len(buf) {
			return meta
		}
		data := buf[i+8 : end]

		switch kind {
		case "tEXt", "iTXt":
			meta.size += length
			meta.text = append(meta.text, data)
			if keyword, value, ok := bytes.Cut(data, []byte{0}); ok && string(keyword) == "Software" {
				meta.software = pngTextValue(kind, value)
			}
		case "zTXt":
			meta.size += length
		case "eXIf":
			meta.size += length
			meta.exif = data
		case "IEND":
			return meta
		}
		i = end + 4 // skip CRC
	}
	return meta
}

// pngTextValue returns the readable part of a tEXt or uncompressed iTXt value
func pngTextValue(kind string, value []byte) string {
	if kind == "tEXt" {
		return string(value)
	}
	// iTXt: compression flag, method, language\0, translated keyword\0, text
	if len(value) < 2 || value[0] != 0 {
		return ""
	}
	rest := value[2:]
	for range 2 {
		_, after, ok := bytes.Cut(rest, []byte{0})
		if !ok {
			return ""
		}
		rest = after
	}
	return string(rest)
}

func exifSoftware(payload []byte) (software string) {
	if len(payload) == 0 {
		return ""
	}
	// goexif indexes into attacker-controlled offsets
	defer func() {
		if recover() != nil {
			software = ""
		}
	}()

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil {
		return ""
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func xmpCreatorTool(chunks [][]byte) string {
	for _, chunk := range chunks {
		if m := creatorToolPattern.FindSubmatch(chunk); m != nil {
			return strings.TrimSpace(string(m[1]))
		}
	}
	return ""
}

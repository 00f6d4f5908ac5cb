// Package image decodes raster images to raw 8-bit samples and runs the
// pixel-level steganography checks on them.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded size so a tiny crafted header cannot force a huge allocation
const MaxPixels = 64 * 1024 * 1024

var (
	// ErrUnsupportedImage is returned when no registered decoder recognises the buffer
	ErrUnsupportedImage = errors.New("image: unsupported or corrupt image")

	// ErrImageTooLarge is returned when the declared dimensions exceed MaxPixels
	ErrImageTooLarge = errors.New("image: dimensions too large")
)

// Raster is a decoded image as interleaved 8-bit samples, row-major
type Raster struct {
	Format   string // decoder name: png, jpeg, gif, bmp, tiff, webp
	Width    int
	Height   int
	Channels int // 1 gray, 3 RGB, 4 RGBA
	Pix      []byte
}

// PixelCount returns Width * Height
func (r *Raster) PixelCount() int {
	return r.Width * r.Height
}

// Channel returns the samples of channel c, one per pixel
func (r *Raster) Channel(c int) []byte {
	if c < 0 || c >= r.Channels {
		return nil
	}
	out := make([]byte, 0, r.PixelCount())
	for i := c; i < len(r.Pix); i += r.Channels {
		out = append(out, r.Pix[i])
	}
	return out
}

// Decode reads the image header, checks its size and decodes it to a Raster
func Decode(buf []byte) (*Raster, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return toRaster(img, format), nil
}

func toRaster(img image.Image, format string) *Raster {
	bounds := img.Bounds()
	r := &Raster{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	switch src := img.(type) {
	case *image.Gray:
		r.Channels = 1
		r.Pix = make([]byte, 0, r.PixelCount())
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			start := src.PixOffset(bounds.Min.X, y)
			r.Pix = append(r.Pix, src.Pix[start:start+r.Width]...)
		}
		return r
	case *image.Gray16:
		r.Channels = 1
		r.Pix = make([]byte, 0, r.PixelCount())
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r.Pix = append(r.Pix, uint8(src.Gray16At(x, y).Y>>8))
			}
		}
		return r
	}

	r.Channels = 4
	if isOpaque(img) {
		r.Channels = 3
	}
	r.Pix = make([]byte, 0, r.PixelCount()*r.Channels)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r.Pix = append(r.Pix, c.R, c.G, c.B)
			if r.Channels == 4 {
				r.Pix = append(r.Pix, c.A)
			}
		}
	}
	return r
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

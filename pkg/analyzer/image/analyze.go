package image

import (
	"context"

	"stegguard/pkg/analyzer/lsb"
	"stegguard/pkg/config"
	"stegguard/pkg/models"
)

// Analyze decodes buf once and runs the pixel-level checks against the
// profile of its declared media type. A buffer that does not decode yields a
// result carrying only Error, never a suspicious one. Cancellation is checked
// after decoding and between the checks; the error is then ctx.Err().
func Analyze(ctx context.Context, buf []byte, profile config.Profile) (*models.ImageChecks, error) {
	raster, err := Decode(buf)
	if err != nil {
		return &models.ImageChecks{Error: err.Error()}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checks := &models.ImageChecks{
		Format:           raster.Format,
		Width:            raster.Width,
		Height:           raster.Height,
		Channels:         raster.Channels,
		EntropyThreshold: profile.ChannelEntropyThreshold,
	}

	steps := []func(){
		func() { checks.ChannelEntropies, checks.AvgEntropy = ChannelEntropies(raster) },
		func() { checks.PixelCorrelation = PixelCorrelation(raster, profile.PixelDiffThreshold) },
		func() { checks.Metadata = ScanMetadata(buf, raster.Format) },
		func() {
			checks.AdvancedLSB = lsb.AnalyzePlane(raster.Pix, lsb.PlaneOptions{
				Format:     raster.Format,
				Channels:   raster.Channels,
				PixelCount: raster.PixelCount(),
				Lossy:      profile.Lossy || raster.Format == "jpeg",
			})
		},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step()
	}

	checks.Suspicious = checks.AvgEntropy > profile.ChannelEntropyThreshold ||
		checks.PixelCorrelation.Suspicious ||
		checks.Metadata.Suspicious ||
		checks.AdvancedLSB.Suspicious
	return checks, nil
}

// Package imageio converts between encoded image bytes and pixel buffers.
package imageio

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Tutortoise/object-detection-service/models"
)

// MaxPixels bounds the decoded raster. Compressed size says little about
// decoded size, so dimensions are checked from the header first.
const MaxPixels = 40_000_000

// Decode turns an encoded image into an RGB pixel buffer, applying any EXIF
// orientation. Every failure is a *models.DecodeError.
func Decode(data []byte) (*models.PixelBuffer, error) {
	if len(data) == 0 {
		return nil, &models.DecodeError{Cause: models.ErrEmptyImage}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &models.DecodeError{Cause: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &models.DecodeError{
			Cause: fmt.Errorf("%w: %dx%d", models.ErrImageTooLarge, cfg.Width, cfg.Height),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &models.DecodeError{Cause: err}
	}

	buf, err := models.PixelBufferFromImage(img)
	if err != nil {
		return nil, &models.DecodeError{Cause: err}
	}
	return buf, nil
}

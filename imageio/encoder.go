package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/disintegration/imaging"

	"github.com/Tutortoise/object-detection-service/models"
)

const (
	JPEGQuality   = 95
	JPEGMediaType = "image/jpeg"
)

// Encode compresses buf as JPEG and builds the matching data URI.
func Encode(buf *models.PixelBuffer) (models.EncodedImage, error) {
	if buf == nil || buf.Width <= 0 || buf.Height <= 0 || len(buf.Pix) != buf.Width*buf.Height*models.Channels {
		return models.EncodedImage{}, &models.EncodeError{Cause: errors.New("malformed pixel buffer")}
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, buf, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return models.EncodedImage{}, &models.EncodeError{Cause: err}
	}

	return models.EncodedImage{
		Bytes:     out.Bytes(),
		MediaType: JPEGMediaType,
		DataURI:   DataURI(JPEGMediaType, out.Bytes()),
	}, nil
}

func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

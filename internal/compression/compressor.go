// Package compression shrinks legacy image blobs in place by bounding their
// dimensions and re-encoding them.
package compression

import (
	"bytes"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const DefaultQuality = 80

// Compressor resizes and re-encodes images. The zero value is not usable; use
// NewCompressor.
type Compressor struct {
	quality int
}

func NewCompressor(quality int) Compressor {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Compressor{quality: quality}
}

// Compress fits data within maxWidth x maxHeight, keeping the aspect ratio,
// and re-encodes it in the format implied by contentType. It returns the
// payload to store and its content type.
//
// Non-image content types, undecodable payloads, encoder failures and results
// that would not be smaller all return the input unchanged.
func (c Compressor) Compress(data []byte, contentType string, maxWidth, maxHeight int) ([]byte, string) {
	if len(data) == 0 || !isImageType(contentType) {
		return data, contentType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, contentType
	}
	img = fit(img, maxWidth, maxHeight)

	format, outType := c.outputFormat(contentType)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(c.quality)); err != nil {
		return data, contentType
	}
	if buf.Len() >= len(data) {
		return data, contentType
	}
	return buf.Bytes(), outType
}

func (c Compressor) outputFormat(contentType string) (imaging.Format, string) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return imaging.PNG, "image/png"
	case strings.Contains(ct, "gif"):
		return imaging.GIF, "image/gif"
	default:
		return imaging.JPEG, "image/jpeg"
	}
}

// fit only ever shrinks.
func fit(img image.Image, maxWidth, maxHeight int) image.Image {
	if maxWidth <= 0 || maxHeight <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

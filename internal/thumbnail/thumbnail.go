// Package thumbnail derives bounded-size preview images from uploaded photo
// bytes. Generation is pure: no I/O, deterministic for a given input.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	ErrUnsupportedFormat = errors.New("thumbnail: unsupported image format")
	ErrDecodeFailure     = errors.New("thumbnail: image decode failed")
)

// Generator scales images down to fit inside a bounding box, preserving
// aspect ratio. Images already inside the box are never upscaled, and nothing
// is ever cropped.
type Generator struct {
	maxWidth  int
	maxHeight int
}

func NewGenerator(maxWidth, maxHeight int) *Generator {
	return &Generator{maxWidth: maxWidth, maxHeight: maxHeight}
}

// Generate decodes data, fits it into the bounding box and re-encodes it in
// the source format.
func (g *Generator) Generate(data []byte) ([]byte, error) {
	img, formatName, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	thumb := imaging.Fit(img, g.maxWidth, g.maxHeight, imaging.Lanczos)

	format, err := imaging.FormatFromExtension(formatName)
	if err != nil {
		format = imaging.JPEG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrDecodeFailure, err)
	}
	return buf.Bytes(), nil
}

// Package thumbnail renders small JPEG previews of uploaded photos.
package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Size names a preset bounding box.
type Size string

const (
	Thumb  Size = "thumb"
	Medium Size = "medium"
)

const (
	maxSizeThumb  = 256
	maxSizeMedium = 768
	qualityThumb  = 75
	qualityMedium = 85
)

// ParseSize maps a query value to a Size, defaulting to Thumb.
func ParseSize(v string) Size {
	if Size(v) == Medium {
		return Medium
	}
	return Thumb
}

// Render decodes data, honours EXIF orientation and fits the result inside
// the size's bounding box. Images already smaller are only re-encoded.
func Render(data []byte, size Size) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}

	maxDim, quality := maxSizeThumb, qualityThumb
	if size == Medium {
		maxDim, quality = maxSizeMedium, qualityMedium
	}

	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}

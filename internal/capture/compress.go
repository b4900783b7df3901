package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // chromedp emits PNG at quality 100

	"golang.org/x/image/draw"
)

// Compress decodes a screenshot, downscales it to at most maxWidth, and
// re-encodes as JPEG at the given quality. This caps the payload handed to
// the generation call and to blob storage.
func Compress(raw []byte, maxWidth, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth {
		height := bounds.Dy() * maxWidth / bounds.Dx()
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

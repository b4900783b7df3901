package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngScreenshot(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 128, B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompress_DownscalesWideImages(t *testing.T) {
	t.Parallel()

	raw := pngScreenshot(t, 2880, 1800)
	out, err := Compress(raw, 1440, 80)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 1440, cfg.Width)
	require.Equal(t, 900, cfg.Height)
}

func TestCompress_KeepsNarrowImagesAtSize(t *testing.T) {
	t.Parallel()

	raw := pngScreenshot(t, 800, 600)
	out, err := Compress(raw, 1440, 80)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 800, cfg.Width)
	require.Equal(t, 600, cfg.Height)
}

func TestCompress_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Compress([]byte("definitely not an image"), 1440, 80)
	require.Error(t, err)
}

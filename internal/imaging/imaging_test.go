package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func decodeSize(t *testing.T, raw []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestCompressScalesLandscape(t *testing.T) {
	raw := dummyImage(t, "png", 2048, 1536)

	out, err := Compress(raw)
	require.NoError(t, err)

	w, h, format := decodeSize(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestCompressScalesPortrait(t *testing.T) {
	raw := dummyImage(t, "jpeg", 600, 2400)

	out, err := Compress(raw)
	require.NoError(t, err)

	w, h, _ := decodeSize(t, out)
	assert.Equal(t, 256, w)
	assert.Equal(t, 1024, h)
}

func TestCompressKeepsSmallImages(t *testing.T) {
	raw := dummyImage(t, "png", 320, 200)

	out, err := Compress(raw)
	require.NoError(t, err)

	w, h, format := decodeSize(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 320, w)
	assert.Equal(t, 200, h)
}

func TestCompressRoundsShorterSide(t *testing.T) {
	raw := dummyImage(t, "png", 1333, 1999)

	out, err := Compress(raw)
	require.NoError(t, err)

	w, h, _ := decodeSize(t, out)
	assert.Equal(t, 1024, h)
	assert.InDelta(t, 1333.0/1999.0*1024.0, float64(w), 1)
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := Compress([]byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestProbeSize(t *testing.T) {
	raw := dummyImage(t, "png", 800, 600)

	w, h, err := ProbeSize(raw)
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	_, _, err = ProbeSize([]byte("nope"))
	assert.ErrorIs(t, err, ErrDecode)
}

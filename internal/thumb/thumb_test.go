package thumb

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestSquareJPEG(t *testing.T) {
	for _, tc := range []struct{ w, h int }{
		{640, 480}, // landscape
		{480, 640}, // portrait
		{128, 128}, // already square
		{32, 32},   // upscale
	} {
		out, err := SquareJPEG(encodePNG(t, tc.w, tc.h), 128)
		require.NoError(t, err)

		img, format, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 128, img.Bounds().Dx())
		assert.Equal(t, 128, img.Bounds().Dy())
	}
}

func TestSquareJPEGCorruptSource(t *testing.T) {
	_, err := SquareJPEG([]byte("not an image"), 128)
	require.Error(t, err)
}

func TestSquareJPEGEmptySource(t *testing.T) {
	_, err := SquareJPEG(nil, 128)
	require.Error(t, err)
}

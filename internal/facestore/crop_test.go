package facestore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktp-verify/internal/entity"
)

func testCardJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestCropFace(t *testing.T) {
	card := testCardJPEG(t, 400, 250)

	out, err := CropFace(card, entity.BoundingBox{X: 280, Y: 40, Width: 90, Height: 110})
	require.NoError(t, err)

	cropped, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 90, cropped.Bounds().Dx())
	assert.Equal(t, 110, cropped.Bounds().Dy())
}

func TestCropFaceClampsOvershoot(t *testing.T) {
	card := testCardJPEG(t, 400, 250)

	// Model coordinates overshoot the right edge; the crop clamps instead
	// of failing.
	out, err := CropFace(card, entity.BoundingBox{X: 350, Y: 200, Width: 100, Height: 100})
	require.NoError(t, err)

	cropped, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, cropped.Bounds().Dx())
	assert.Equal(t, 50, cropped.Bounds().Dy())
}

func TestCropFaceOutsideBounds(t *testing.T) {
	card := testCardJPEG(t, 400, 250)
	_, err := CropFace(card, entity.BoundingBox{X: 500, Y: 500, Width: 10, Height: 10})
	assert.Error(t, err)
}

func TestCropFacePNGInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := CropFace(buf.Bytes(), entity.BoundingBox{X: 10, Y: 10, Width: 30, Height: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestCropFaceRejectsGarbage(t *testing.T) {
	_, err := CropFace([]byte("not an image"), entity.BoundingBox{X: 0, Y: 0, Width: 10, Height: 10})
	assert.Error(t, err)
}

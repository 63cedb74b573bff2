package facestore

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for uploaded cards

	"ktp-verify/internal/entity"
)

// CropFace cuts the face photograph out of the card image using the model's
// pixel bounding box and re-encodes it as JPEG. The box is clamped to the
// image bounds since model coordinates occasionally overshoot by a pixel.
func CropFace(imageData []byte, box entity.BoundingBox) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode card image: %w", err)
	}

	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v outside image bounds %v", box, img.Bounds())
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, si.SubImage(rect), &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode face jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

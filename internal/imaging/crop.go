// Package imaging holds the pure image transforms the puzzle pipeline needs.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // register PNG decoding, providers occasionally serve PNGs
)

var ErrDecode = errors.New("DECODE_ERROR: input is not a decodable image")

const jpegQuality = 85

// CropSquare decodes arbitrary image bytes and returns a JPEG of the centered
// square region with side length min(width, height). The crop offsets are
// offsetX = (width-side)/2 and offsetY = (height-side)/2, truncated.
func CropSquare(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	side := min(width, height)
	offsetX := (width - side) / 2
	offsetY := (height - side) / 2

	rect := image.Rect(
		bounds.Min.X+offsetX,
		bounds.Min.Y+offsetY,
		bounds.Min.X+offsetX+side,
		bounds.Min.Y+offsetY+side,
	)

	square := crop(img, rect)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, square, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

func crop(img image.Image, rect image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	// Decoders in the stdlib all produce SubImage-capable types; this path
	// covers custom image.Image implementations.
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

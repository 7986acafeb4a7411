// Package icon turns host icon artwork into the lossless PNG bytes the bridge returns.
package icon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	// registered decoders for artwork found inside APKs
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSize bounds the longest edge of a rendered icon, in pixels
const DefaultMaxSize = 192

// ErrEmptyImage is returned for images without a drawable area
var ErrEmptyImage = errors.New("icon has no drawable area")

// Decode decodes PNG, JPEG, GIF or WebP artwork
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode %s icon: %w", format, ErrEmptyImage)
	}
	return img, nil
}

// Render draws img onto a fresh NRGBA raster anchored at the origin.
// Images larger than maxSize on either edge are scaled down preserving aspect ratio;
// maxSize <= 0 keeps the intrinsic size.
func Render(img image.Image, maxSize int) (*image.NRGBA, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	src := img.Bounds()
	if src.Empty() {
		return nil, ErrEmptyImage
	}

	w, h := src.Dx(), src.Dy()
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		if w >= h {
			h = max(1, h*maxSize/w)
			w = maxSize
		} else {
			w = max(1, w*maxSize/h)
			h = maxSize
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}
	return dst, nil
}

// EncodePNG renders img and encodes it as PNG
func EncodePNG(img image.Image, maxSize int) ([]byte, error) {
	raster, err := Render(img, maxSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

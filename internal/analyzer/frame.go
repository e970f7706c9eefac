package analyzer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/gift"
)

// Frame is a decoded colour frame normalised to an origin-anchored RGBA buffer
type Frame struct {
	rgba *image.RGBA
}

// NewFrame copies img into a Frame. Images with an empty area are rejected.
func NewFrame(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image has empty dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}

	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return &Frame{rgba: rgba}, nil
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Frame{rgba: rgba}, nil
}

// Width returns the frame width in pixels
func (f *Frame) Width() int { return f.rgba.Rect.Dx() }

// Height returns the frame height in pixels
func (f *Frame) Height() int { return f.rgba.Rect.Dy() }

// Image exposes the underlying pixels
func (f *Frame) Image() *image.RGBA { return f.rgba }

// Size formats the frame dimensions as WxH
func (f *Frame) Size() string { return fmt.Sprintf("%dx%d", f.Width(), f.Height()) }

// ToGrayscale returns the 8-bit luma of the frame
func ToGrayscale(f *Frame) *image.Gray {
	g := gift.New(gift.Grayscale())
	gray := image.NewGray(g.Bounds(f.rgba.Bounds()))
	g.Draw(gray, f.rgba)
	return gray
}

// sameSize reports whether a grayscale frame matches the colour frame dimensions
func sameSize(gray *image.Gray, f *Frame) bool {
	b := gray.Bounds()
	return b.Dx() == f.Width() && b.Dy() == f.Height()
}

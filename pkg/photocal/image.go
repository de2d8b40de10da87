// Package photocal calibrates raw mosaic-CCD exposures: bias subtraction,
// overscan removal, flat fielding and sky background subtraction.
package photocal

import (
	"fmt"
	"image"
	"math"
)

// Image is a 2D float64 pixel array stored row-major.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage returns a zero-filled image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// NewImageFilled returns an image with every pixel set to v.
func NewImageFilled(width, height int, v float64) *Image {
	img := NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func (img *Image) At(x, y int) float64     { return img.Pix[y*img.Width+x] }
func (img *Image) Set(x, y int, v float64) { img.Pix[y*img.Width+x] = v }
func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }

func (img *Image) SameShape(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height
}

func (img *Image) String() string {
	return fmt.Sprintf("%dx%d", img.Width, img.Height)
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float64, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

// CopyRegion copies the w x h block at (sx, sy) of src into img at (dx, dy).
func (img *Image) CopyRegion(src *Image, sx, sy, dx, dy, w, h int) {
	for row := 0; row < h; row++ {
		srcOff := (sy+row)*src.Width + sx
		dstOff := (dy+row)*img.Width + dx
		copy(img.Pix[dstOff:dstOff+w], src.Pix[srcOff:srcOff+w])
	}
}

// finitePixels returns the finite values inside r.
func (img *Image) finitePixels(r image.Rectangle) []float64 {
	r = r.Intersect(img.Bounds())
	values := make([]float64, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[y*img.Width : (y+1)*img.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			if v := row[x]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				values = append(values, v)
			}
		}
	}
	return values
}

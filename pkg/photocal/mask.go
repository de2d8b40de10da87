package photocal

import (
	"fmt"
	"image"
	"math"
)

// CircularMask excludes the open disk of radius R around (CX, CY) from
// background statistics. Coordinates are zero-based pixel indices.
type CircularMask struct {
	CX float64
	CY float64
	R  float64
}

func (m CircularMask) Contains(x, y int) bool {
	dx := float64(x) - m.CX
	dy := float64(y) - m.CY
	return dx*dx+dy*dy < m.R*m.R
}

// Bounds is the pixel rectangle enclosing the disk.
func (m CircularMask) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(m.CX-m.R)), int(math.Floor(m.CY-m.R)),
		int(math.Ceil(m.CX+m.R))+1, int(math.Ceil(m.CY+m.R))+1,
	)
}

func (m CircularMask) String() string {
	return fmt.Sprintf("circle(%.1f, %.1f, r=%.1f)", m.CX, m.CY, m.R)
}

// Bitmap rasterises the mask onto a width x height grid.
func (m CircularMask) Bitmap(width, height int) []bool {
	bits := make([]bool, width*height)
	r := m.Bounds().Intersect(image.Rect(0, 0, width, height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Contains(x, y) {
				bits[y*width+x] = true
			}
		}
	}
	return bits
}

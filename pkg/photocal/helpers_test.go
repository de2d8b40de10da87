package photocal

import (
	"math"
	"path/filepath"
	"testing"
)

// smallGeometry is a 2x2 mosaic of 40x40 chips with 6 columns and 4 rows of
// overscan. The frame omits the trailing overscan rows of the top chip row.
func smallGeometry() MosaicGeometry {
	return MosaicGeometry{
		ChipsX:      2,
		ChipsY:      2,
		ChipWidth:   40,
		ChipHeight:  40,
		OverscanX:   6,
		OverscanY:   4,
		FrameWidth:  92,
		FrameHeight: 84,
	}
}

func constantFrame(width, height int, v float64) Frame {
	return Frame{Image: NewImageFilled(width, height, v), Header: NewHeader()}
}

func writeTestFits(t *testing.T, dir, name string, f Frame) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := WriteFits(path, f.Image, f.Header); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func assertAllNear(t *testing.T, img *Image, want, tol float64) {
	t.Helper()
	for i, v := range img.Pix {
		if math.Abs(v-want) > tol {
			t.Fatalf("pixel (%d, %d) = %g, want %g +/- %g", i%img.Width, i/img.Width, v, want, tol)
		}
	}
}

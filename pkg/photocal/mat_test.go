package photocal

import (
	"math"
	"testing"
)

func TestMedianBlur_RemovesSpike(t *testing.T) {
	data := []float64{
		1, 2, 3,
		4, 100, 6,
		7, 8, 9,
	}
	src := NewMatFromData(3, 3, data)
	defer src.Close()
	dst := NewMat()
	defer dst.Close()

	medianBlur(src, &dst, 3)
	if dst.Rows() != 3 || dst.Cols() != 3 {
		t.Fatalf("size: got %dx%d, want 3x3", dst.Cols(), dst.Rows())
	}
	if got := dst.DataFloat64()[4]; got != 6 {
		t.Errorf("centre: got %g, want 6", got)
	}
}

func TestResizeCubic_Constant(t *testing.T) {
	src := NewMatFromData(2, 3, []float64{4.5, 4.5, 4.5, 4.5, 4.5, 4.5})
	defer src.Close()
	dst := NewMat()
	defer dst.Close()

	resizeCubic(src, &dst, 8, 12)
	if dst.Rows() != 8 || dst.Cols() != 12 {
		t.Fatalf("size: got %dx%d, want 12x8", dst.Cols(), dst.Rows())
	}
	for i, v := range dst.DataFloat64() {
		if math.Abs(v-4.5) > 1e-9 {
			t.Fatalf("sample %d: got %g, want 4.5", i, v)
		}
	}
}

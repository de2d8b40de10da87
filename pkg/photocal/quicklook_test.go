package photocal

import (
	"bytes"
	"errors"
	"image/color"
	"image/jpeg"
	"math"
	"path/filepath"
	"testing"
)

func gradientImage(width, height int) *Image {
	img := NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, float64(x+y))
		}
	}
	return img
}

func TestRenderQuicklookBytes(t *testing.T) {
	img := gradientImage(100, 60)
	img.Set(3, 3, math.NaN())

	cases := []struct {
		name         string
		opts         QuicklookOptions
		wantW, wantH int
	}{
		{"native size", QuicklookOptions{}, 100, 60},
		{"downsampled", QuicklookOptions{Width: 50}, 50, 30},
		{"overlays", QuicklookOptions{
			Mask:     &CircularMask{CX: 50, CY: 30, R: 10},
			Geometry: &MosaicGeometry{ChipsX: 2, ChipsY: 2, ChipWidth: 50, ChipHeight: 30},
			Title:    calBackground,
		}, 100, 60},
		{"false colour", QuicklookOptions{FalseColor: true, Width: 20}, 20, 12},
	}
	for _, tc := range cases {
		data, err := RenderQuicklookBytes(img, tc.opts)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		decoded, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: decoding JPEG: %v", tc.name, err)
		}
		if b := decoded.Bounds(); b.Dx() != tc.wantW || b.Dy() != tc.wantH {
			t.Errorf("%s: got %dx%d, want %dx%d", tc.name, b.Dx(), b.Dy(), tc.wantW, tc.wantH)
		}
	}
}

func TestRenderQuicklook_Errors(t *testing.T) {
	if _, err := RenderQuicklookBytes(NewImage(0, 0), QuicklookOptions{}); err == nil {
		t.Error("expected an error for an empty image")
	}
	path := filepath.Join(t.TempDir(), "missing", "ql.jpg")
	if err := RenderQuicklook(path, gradientImage(10, 10), QuicklookOptions{}); !errors.Is(err, ErrWrite) {
		t.Errorf("got %v, want ErrWrite", err)
	}
}

func TestStretchLimits(t *testing.T) {
	lo, hi := stretchLimits(NewImageFilled(10, 10, 5))
	if lo != 5 || hi != 6 {
		t.Errorf("flat image: got [%g, %g], want [5, 6]", lo, hi)
	}
	lo, hi = stretchLimits(NewImageFilled(4, 4, math.NaN()))
	if lo != 0 || hi != 1 {
		t.Errorf("all-NaN image: got [%g, %g], want [0, 1]", lo, hi)
	}
}

func TestFalseColorPalette(t *testing.T) {
	pal := falseColorPalette()
	lum := func(c color.NRGBA) int { return int(c.R) + int(c.G) + int(c.B) }
	if lum(pal[0]) >= lum(pal[255]) {
		t.Errorf("ramp is not brighter at the top: %v .. %v", pal[0], pal[255])
	}
	for i, c := range pal {
		if c.A != 255 {
			t.Fatalf("entry %d is not opaque: %v", i, c)
		}
	}
}

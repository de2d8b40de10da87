package photocal

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/stat"
)

const (
	quicklookWidth      = 800
	quicklookMaxSamples = 1 << 20
)

var (
	chipLineColor = color.RGBA{R: 230, G: 200, B: 40, A: 255}
	maskColor     = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	titleColor    = color.RGBA{R: 60, G: 220, B: 60, A: 255}
)

// QuicklookOptions controls the preview rendering.
type QuicklookOptions struct {
	Mask     *CircularMask
	Geometry *MosaicGeometry
	Title    string
	Width    int

	// FalseColor maps levels through a dark blue to yellow ramp instead of grey.
	FalseColor bool
}

var (
	rampLow  = colorful.Color{R: 0.05, G: 0.05, B: 0.25}
	rampHigh = colorful.Color{R: 1, G: 0.92, B: 0.35}
)

// falseColorPalette blends the ramp endpoints in HCL space, one entry per level.
func falseColorPalette() [256]color.NRGBA {
	var pal [256]color.NRGBA
	for i := range pal {
		r, g, b := rampLow.BlendHcl(rampHigh, float64(i)/255).Clamped().RGB255()
		pal[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return pal
}

// RenderQuicklook writes a stretched, downsampled JPEG preview of img with
// north up (row 0 at the bottom), chip boundaries and the background mask.
func RenderQuicklook(outputPath string, img *Image, opts QuicklookOptions) error {
	ql, err := renderQuicklookImage(img, opts)
	if err != nil {
		return &WriteError{Path: outputPath, Err: err}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return &WriteError{Path: outputPath, Err: err}
	}
	if err := jpeg.Encode(f, ql, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return &WriteError{Path: outputPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: outputPath, Err: err}
	}
	return nil
}

// RenderQuicklookBytes renders the preview and returns it as JPEG bytes.
func RenderQuicklookBytes(img *Image, opts QuicklookOptions) ([]byte, error) {
	ql, err := renderQuicklookImage(img, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ql, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderQuicklookImage(img *Image, opts QuicklookOptions) (*image.NRGBA, error) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, errors.New("no image data")
	}
	targetWidth := opts.Width
	if targetWidth <= 0 {
		targetWidth = quicklookWidth
	}

	lo, hi := stretchLimits(img)
	levels := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := img.Pix[y*img.Width : (y+1)*img.Width]
		dst := levels.Pix[(img.Height-1-y)*levels.Stride:]
		for x, v := range src {
			level := (v - lo) / (hi - lo) * 255
			switch {
			case math.IsNaN(level) || level < 0:
				dst[x] = 0
			case level > 255:
				dst[x] = 255
			default:
				dst[x] = uint8(level)
			}
		}
	}

	var base image.Image = levels
	if opts.FalseColor {
		pal := falseColorPalette()
		rgb := image.NewNRGBA(levels.Rect)
		for i, l := range levels.Pix {
			c := pal[l]
			rgb.Pix[4*i], rgb.Pix[4*i+1], rgb.Pix[4*i+2], rgb.Pix[4*i+3] = c.R, c.G, c.B, c.A
		}
		base = rgb
	}

	ql := imaging.Fit(base, targetWidth, targetWidth, imaging.Box)
	scale := float64(ql.Bounds().Dx()) / float64(img.Width)
	flipY := func(y float64) int { return int((float64(img.Height) - y) * scale) }

	if g := opts.Geometry; g != nil {
		for cx := 1; cx < g.ChipsX; cx++ {
			x := int(float64(cx*g.ChipWidth) * scale)
			drawLine(ql, x, 0, x, ql.Bounds().Dy()-1, chipLineColor)
		}
		for cy := 1; cy < g.ChipsY; cy++ {
			y := flipY(float64(cy * g.ChipHeight))
			drawLine(ql, 0, y, ql.Bounds().Dx()-1, y, chipLineColor)
		}
	}
	if m := opts.Mask; m != nil {
		drawCircle(ql, int(m.CX*scale), flipY(m.CY), int(math.Max(1, m.R*scale)), maskColor)
	}
	if opts.Title != "" {
		drawText(ql, basicfont.Face7x13, opts.Title, 5, 15, titleColor)
	}
	return ql, nil
}

// stretchLimits returns the 0.5% and 99.5% quantiles of a subsample of the
// finite pixels.
func stretchLimits(img *Image) (float64, float64) {
	stride := len(img.Pix)/quicklookMaxSamples + 1
	samples := make([]float64, 0, len(img.Pix)/stride+1)
	for i := 0; i < len(img.Pix); i += stride {
		if v := img.Pix[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			samples = append(samples, v)
		}
	}
	if len(samples) == 0 {
		return 0, 1
	}
	sort.Float64s(samples)
	lo := stat.Quantile(0.005, stat.Empirical, samples, nil)
	hi := stat.Quantile(0.995, stat.Empirical, samples, nil)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// drawText draws a string with its baseline at (x, y).
func drawText(img draw.Image, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCircle draws a circle outline using the midpoint algorithm.
func drawCircle(img draw.Image, cx, cy, radius int, c color.RGBA) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.Set(cx+x, cy+y, c)
		img.Set(cx+y, cy+x, c)
		img.Set(cx-y, cy+x, c)
		img.Set(cx-x, cy+y, c)
		img.Set(cx-x, cy-y, c)
		img.Set(cx-y, cy-x, c)
		img.Set(cx+y, cy-x, c)
		img.Set(cx+x, cy-y, c)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(img draw.Image, x0, y0, x1, y1 int, c color.RGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

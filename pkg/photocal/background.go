package photocal

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// idwNeighbors is the number of good boxes used to fill an excluded box.
const idwNeighbors = 10

// BackgroundParams controls the mesh background estimator.
type BackgroundParams struct {
	BoxWidth          int     `koanf:"box_width" yaml:"box_width"`
	BoxHeight         int     `koanf:"box_height" yaml:"box_height"`
	FilterSize        int     `koanf:"filter_size" yaml:"filter_size"`
	Sigma             float64 `koanf:"sigma" yaml:"sigma"`
	MaxIters          int     `koanf:"max_iters" yaml:"max_iters"`
	ExcludePercentile float64 `koanf:"exclude_percentile" yaml:"exclude_percentile"`
}

// DefaultBackgroundParams returns 40x40 boxes, a 3x3 mesh median filter and
// 3-sigma clipping with at most 5 iterations.
func DefaultBackgroundParams() BackgroundParams {
	return BackgroundParams{
		BoxWidth:          40,
		BoxHeight:         40,
		FilterSize:        3,
		Sigma:             3.0,
		MaxIters:          5,
		ExcludePercentile: 10,
	}
}

func (p BackgroundParams) Validate() error {
	if p.BoxWidth <= 0 || p.BoxHeight <= 0 {
		return fmt.Errorf("%w: background box must be positive, got %dx%d", ErrInvalidOptions, p.BoxWidth, p.BoxHeight)
	}
	if p.FilterSize < 1 || p.FilterSize > 5 || p.FilterSize%2 == 0 {
		return fmt.Errorf("%w: filter size must be 1, 3 or 5, got %d", ErrInvalidOptions, p.FilterSize)
	}
	if p.Sigma <= 0 {
		return fmt.Errorf("%w: sigma must be positive, got %g", ErrInvalidOptions, p.Sigma)
	}
	if p.ExcludePercentile < 0 || p.ExcludePercentile > 100 {
		return fmt.Errorf("%w: exclude percentile must be in [0, 100], got %g", ErrInvalidOptions, p.ExcludePercentile)
	}
	return nil
}

// Background is a smooth sky estimate and the low-resolution mesh it was
// interpolated from.
type Background struct {
	Surface       *Image
	Mesh          *Image
	RMSMesh       *Image
	Median        float64
	RMSMedian     float64
	ExcludedBoxes int
}

// EstimateBackground tiles img into boxes, estimates each box with sigma
// clipping and the SExtractor mode estimator, and interpolates the filtered
// mesh back to full resolution. Pixels inside mask and non-finite pixels are
// ignored. Boxes with too many ignored pixels are filled from their nearest
// good neighbours.
func EstimateBackground(ctx context.Context, img *Image, mask *CircularMask, p BackgroundParams) (*Background, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	width, height := img.Width, img.Height
	nx := (width + p.BoxWidth - 1) / p.BoxWidth
	ny := (height + p.BoxHeight - 1) / p.BoxHeight

	var masked []bool
	if mask != nil {
		masked = mask.Bitmap(width, height)
	}

	level := NewImage(nx, ny)
	rms := NewImage(nx, ny)
	good := make([]bool, nx*ny)
	boxPixels := p.BoxWidth * p.BoxHeight
	values := make([]float64, 0, boxPixels)
	numGood := 0

	for by := 0; by < ny; by++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		y0 := by * p.BoxHeight
		y1 := min(y0+p.BoxHeight, height)
		for bx := 0; bx < nx; bx++ {
			x0 := bx * p.BoxWidth
			x1 := min(x0+p.BoxWidth, width)

			values = values[:0]
			for y := y0; y < y1; y++ {
				off := y * width
				for x := x0; x < x1; x++ {
					if masked != nil && masked[off+x] {
						continue
					}
					v := img.Pix[off+x]
					if math.IsNaN(v) || math.IsInf(v, 0) {
						continue
					}
					values = append(values, v)
				}
			}

			// Padding beyond the image edge counts as masked.
			rejected := boxPixels - len(values)
			if len(values) == 0 || float64(rejected) > p.ExcludePercentile/100*float64(boxPixels) {
				continue
			}

			s := SigmaClip(values, p.Sigma, p.MaxIters)
			i := by*nx + bx
			level.Pix[i] = SExtractorEstimate(s)
			rms.Pix[i] = s.StdDev
			good[i] = true
			numGood++
		}
	}

	if numGood == 0 {
		return nil, ErrNoBackgroundBoxes
	}
	if numGood < nx*ny {
		fillExcluded(level, good)
		fillExcluded(rms, good)
	}

	level = filterMesh(level, p.FilterSize)
	rms = filterMesh(rms, p.FilterSize)

	return &Background{
		Surface:       zoomMesh(level, p.BoxWidth, p.BoxHeight, width, height),
		Mesh:          level,
		RMSMesh:       rms,
		Median:        medianFloat64(level.Pix),
		RMSMedian:     medianFloat64(rms.Pix),
		ExcludedBoxes: nx*ny - numGood,
	}, nil
}

type meshNeighbor struct {
	dist  float64
	value float64
}

// fillExcluded replaces every box not marked good with the inverse-distance
// weighted mean of its nearest good boxes.
func fillExcluded(mesh *Image, good []bool) {
	src := mesh.Clone()
	nx, ny := mesh.Width, mesh.Height
	maxRadius := max(nx, ny)
	neighbors := make([]meshNeighbor, 0, 4*idwNeighbors)

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			if good[y*nx+x] {
				continue
			}
			neighbors = neighbors[:0]
			// Rings are square, so once enough neighbours are found keep
			// scanning out to the diagonal distance to catch closer ones.
			limit := maxRadius
			for radius := 1; radius <= limit; radius++ {
				for yy := y - radius; yy <= y+radius; yy++ {
					if yy < 0 || yy >= ny {
						continue
					}
					step := 1
					if yy != y-radius && yy != y+radius {
						step = 2 * radius
					}
					for xx := x - radius; xx <= x+radius; xx += step {
						if xx < 0 || xx >= nx || !good[yy*nx+xx] {
							continue
						}
						dx, dy := float64(xx-x), float64(yy-y)
						neighbors = append(neighbors, meshNeighbor{dist: math.Hypot(dx, dy), value: src.Pix[yy*nx+xx]})
					}
				}
				if len(neighbors) >= idwNeighbors && limit == maxRadius {
					limit = min(maxRadius, int(math.Ceil(float64(radius)*math.Sqrt2)))
				}
			}

			sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })
			if len(neighbors) > idwNeighbors {
				neighbors = neighbors[:idwNeighbors]
			}
			var sum, weights float64
			for _, n := range neighbors {
				w := 1 / n.dist
				sum += w * n.value
				weights += w
			}
			mesh.Pix[y*nx+x] = sum / weights
		}
	}
}

func filterMesh(mesh *Image, filterSize int) *Image {
	if filterSize <= 1 || (mesh.Width == 1 && mesh.Height == 1) {
		return mesh
	}
	src := NewMatFromData(mesh.Height, mesh.Width, mesh.Pix)
	defer src.Close()
	dst := NewMat()
	defer dst.Close()
	medianBlur(src, &dst, filterSize)

	out := NewImage(mesh.Width, mesh.Height)
	copy(out.Pix, dst.DataFloat64())
	return out
}

// zoomMesh interpolates the mesh to the padded box grid and crops it to
// width x height.
func zoomMesh(mesh *Image, boxWidth, boxHeight, width, height int) *Image {
	paddedW, paddedH := mesh.Width*boxWidth, mesh.Height*boxHeight
	src := NewMatFromData(mesh.Height, mesh.Width, mesh.Pix)
	defer src.Close()
	dst := NewMat()
	defer dst.Close()
	resizeCubic(src, &dst, paddedH, paddedW)

	zoomed := &Image{Width: paddedW, Height: paddedH, Pix: dst.DataFloat64()}
	if paddedW == width && paddedH == height {
		return zoomed.Clone()
	}
	out := NewImage(width, height)
	out.CopyRegion(zoomed, 0, 0, 0, 0, width, height)
	return out
}

// SubtractBackground returns img - bkg.Surface with hdr updated to record the
// background stage. mask is the mask the background was estimated with.
func SubtractBackground(img *Image, hdr *Header, bkg *Background, mask *CircularMask) (Frame, error) {
	if !img.SameShape(bkg.Surface) {
		return Frame{}, &ShapeMismatchError{
			Op:    "background subtraction",
			Width: bkg.Surface.Width, Height: bkg.Surface.Height,
			WantW: img.Width, WantH: img.Height,
		}
	}

	out := NewImage(img.Width, img.Height)
	for i, v := range img.Pix {
		out.Pix[i] = v - bkg.Surface.Pix[i]
	}

	h := hdr.Clone()
	if mask != nil {
		h.Set("CAL", calBackground+" with mask", "")
		h.Set("MASKCX", mask.CX, "background mask centre x")
		h.Set("MASKCY", mask.CY, "background mask centre y")
		h.Set("MASKR", mask.R, "background mask radius")
	} else {
		h.Set("CAL", calBackground+" without mask", "")
	}
	h.Set("BKGMED", bkg.Median, "median sky background")
	h.Set("BKGRMS", bkg.RMSMedian, "median sky background rms")
	return Frame{Image: out, Header: h}, nil
}

//go:build purego || js

package photocal

import (
	"math"
	"sort"
)

// Mat is a pure Go 2D float64 matrix.
type Mat struct {
	data []float64
	rows int
	cols int
}

func NewMat() Mat { return Mat{} }

func NewMatWithSize(rows, cols int) Mat {
	return Mat{data: make([]float64, rows*cols), rows: rows, cols: cols}
}

func (m Mat) Rows() int { return m.rows }
func (m Mat) Cols() int { return m.cols }

func (m *Mat) Close() {
	m.data = nil
	m.rows = 0
	m.cols = 0
}

// NewMatFromData copies a rows x cols row-major slice into a new Mat.
func NewMatFromData(rows, cols int, data []float64) Mat {
	m := NewMatWithSize(rows, cols)
	copy(m.data, data)
	return m
}

func (m Mat) DataFloat64() []float64 { return m.data }

// medianBlur filters with a ksize x ksize median. Near the edges only the
// neighbours inside the matrix take part.
func medianBlur(src Mat, dst *Mat, ksize int) {
	rows, cols := src.rows, src.cols
	half := ksize / 2
	result := make([]float64, rows*cols)
	neighbors := make([]float64, 0, ksize*ksize)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			neighbors = neighbors[:0]
			for rr := r - half; rr <= r+half; rr++ {
				if rr < 0 || rr >= rows {
					continue
				}
				for cc := c - half; cc <= c+half; cc++ {
					if cc < 0 || cc >= cols {
						continue
					}
					neighbors = append(neighbors, src.data[rr*cols+cc])
				}
			}
			sort.Float64s(neighbors)
			result[r*cols+c] = sortedMedian(neighbors)
		}
	}

	if dst.rows != rows || dst.cols != cols || dst.data == nil {
		*dst = NewMatWithSize(rows, cols)
	}
	copy(dst.data, result)
}

type cubicTap struct {
	idx [4]int
	w   [4]float64
}

// cubicTaps computes source indices and Keys (a = -0.75) weights for each
// destination sample, aligning pixel centres and replicating the border.
func cubicTaps(srcLen, dstLen int) []cubicTap {
	const a = -0.75
	scale := float64(srcLen) / float64(dstLen)
	taps := make([]cubicTap, dstLen)
	for d := range taps {
		fx := (float64(d)+0.5)*scale - 0.5
		sx := math.Floor(fx)
		t := fx - sx

		w0 := ((a*(t+1)-5*a)*(t+1)+8*a)*(t+1) - 4*a
		w1 := ((a+2)*t-(a+3))*t*t + 1
		w2 := ((a+2)*(1-t)-(a+3))*(1-t)*(1-t) + 1
		taps[d].w = [4]float64{w0, w1, w2, 1 - w0 - w1 - w2}

		for k := 0; k < 4; k++ {
			i := int(sx) - 1 + k
			if i < 0 {
				i = 0
			}
			if i >= srcLen {
				i = srcLen - 1
			}
			taps[d].idx[k] = i
		}
	}
	return taps
}

// resizeCubic scales src to rows x cols with bicubic interpolation.
func resizeCubic(src Mat, dst *Mat, rows, cols int) {
	xTaps := cubicTaps(src.cols, cols)
	yTaps := cubicTaps(src.rows, rows)

	temp := make([]float64, src.rows*cols)
	for r := 0; r < src.rows; r++ {
		row := src.data[r*src.cols : (r+1)*src.cols]
		for c, tap := range xTaps {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += row[tap.idx[k]] * tap.w[k]
			}
			temp[r*cols+c] = sum
		}
	}

	if dst.rows != rows || dst.cols != cols || dst.data == nil {
		*dst = NewMatWithSize(rows, cols)
	}
	for r, tap := range yTaps {
		for c := 0; c < cols; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += temp[tap.idx[k]*cols+c] * tap.w[k]
			}
			dst.data[r*cols+c] = sum
		}
	}
}

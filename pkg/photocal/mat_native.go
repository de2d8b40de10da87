//go:build !purego && !js

package photocal

import (
	"image"

	"gocv.io/x/gocv"
)

// Mat wraps a CV_64F gocv.Mat for the native OpenCV backend.
type Mat struct {
	m gocv.Mat
}

func NewMat() Mat { return Mat{m: gocv.NewMat()} }

func NewMatWithSize(rows, cols int) Mat {
	return Mat{m: gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)}
}

func (mat Mat) Rows() int { return mat.m.Rows() }
func (mat Mat) Cols() int { return mat.m.Cols() }
func (mat *Mat) Close()   { mat.m.Close() }

// NewMatFromData copies a rows x cols row-major slice into a new Mat.
func NewMatFromData(rows, cols int, data []float64) Mat {
	mat := NewMatWithSize(rows, cols)
	copy(mat.DataFloat64(), data)
	return mat
}

func (mat Mat) DataFloat64() []float64 {
	data, _ := mat.m.DataPtrFloat64()
	return data
}

// medianBlur filters with a ksize x ksize median. OpenCV only supports
// floating point input as CV_32F, so the mesh round-trips through float32.
func medianBlur(src Mat, dst *Mat, ksize int) {
	f32 := gocv.NewMat()
	defer f32.Close()
	src.m.ConvertTo(&f32, gocv.MatTypeCV32F)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(f32, &blurred, ksize)
	blurred.ConvertTo(&dst.m, gocv.MatTypeCV64F)
}

// resizeCubic scales src to rows x cols with bicubic interpolation.
func resizeCubic(src Mat, dst *Mat, rows, cols int) {
	gocv.Resize(src.m, &dst.m, image.Pt(cols, rows), 0, 0, gocv.InterpolationCubic)
}

package raster

import (
	"math"
	"math/cmplx"
)

// Array is a dense row-major block of pixels with a validity mask.
// Mask[i] is true where the pixel is invalid. Exactly one of Data or
// Complex is populated, depending on whether the source band is complex.
type Array struct {
	Shape   []int
	Data    []float64
	Complex []complex128
	Mask    []bool
}

// Len is the number of elements in the array.
func (a *Array) Len() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

func (a *Array) IsComplex() bool { return a.Complex != nil }

// Value returns element i as a float64. Masked elements are NaN. Complex
// elements return their real part.
func (a *Array) Value(i int) float64 {
	if a.Mask != nil && a.Mask[i] {
		return math.NaN()
	}
	if a.Complex != nil {
		return real(a.Complex[i])
	}
	return a.Data[i]
}

// Values returns all elements with masked pixels filled with NaN.
func (a *Array) Values() []float64 {
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = a.Value(i)
	}
	return out
}

// Squeeze drops every axis of length one.
func (a *Array) Squeeze() *Array {
	var shape []int
	for _, s := range a.Shape {
		if s != 1 {
			shape = append(shape, s)
		}
	}
	a.Shape = shape
	return a
}

// StackArrays concatenates equally shaped arrays along a new leading axis.
func StackArrays(arrs []*Array) *Array {
	if len(arrs) == 0 {
		return &Array{Shape: []int{0}}
	}
	inner := append([]int(nil), arrs[0].Shape...)
	size := arrs[0].Len()
	out := &Array{Shape: append([]int{len(arrs)}, inner...), Mask: make([]bool, 0, size*len(arrs))}
	if arrs[0].IsComplex() {
		out.Complex = make([]complex128, 0, size*len(arrs))
	} else {
		out.Data = make([]float64, 0, size*len(arrs))
	}
	for _, a := range arrs {
		if out.Complex != nil {
			out.Complex = append(out.Complex, a.Complex...)
		} else {
			out.Data = append(out.Data, a.Data...)
		}
		if a.Mask != nil {
			out.Mask = append(out.Mask, a.Mask...)
		} else {
			out.Mask = append(out.Mask, make([]bool, a.Len())...)
		}
	}
	return out
}

// noDataMask marks pixels matching nodata. A NaN nodata matches NaN values.
func noDataMask(data []float64, nodata float64) []bool {
	mask := make([]bool, len(data))
	isNaN := math.IsNaN(nodata)
	for i, v := range data {
		if isNaN {
			mask[i] = math.IsNaN(v)
		} else {
			mask[i] = v == nodata
		}
	}
	return mask
}

func complexNoDataMask(data []complex128, nodata float64) []bool {
	mask := make([]bool, len(data))
	isNaN := math.IsNaN(nodata)
	for i, v := range data {
		if isNaN {
			mask[i] = cmplx.IsNaN(v)
		} else {
			mask[i] = real(v) == nodata && imag(v) == 0
		}
	}
	return mask
}

// subsample picks every rowStep-th row and colStep-th column from a
// rows x cols block.
func subsample(data []float64, rows, cols, rowStep, colStep int) []float64 {
	if rowStep == 1 && colStep == 1 {
		return data
	}
	out := make([]float64, 0, stepLen(0, rows, rowStep)*stepLen(0, cols, colStep))
	for r := 0; r < rows; r += rowStep {
		for c := 0; c < cols; c += colStep {
			out = append(out, data[r*cols+c])
		}
	}
	return out
}

func subsampleComplex(data []complex128, rows, cols, rowStep, colStep int) []complex128 {
	if rowStep == 1 && colStep == 1 {
		return data
	}
	out := make([]complex128, 0, stepLen(0, rows, rowStep)*stepLen(0, cols, colStep))
	for r := 0; r < rows; r += rowStep {
		for c := 0; c < cols; c += colStep {
			out = append(out, data[r*cols+c])
		}
	}
	return out
}

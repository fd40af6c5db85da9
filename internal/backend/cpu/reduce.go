package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Sum reduces all elements to a 0-D tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("sum", x)
	var total float64
	for _, v := range x.AsFloat32() {
		total += float64(v)
	}
	result := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	result.AsFloat32()[0] = float32(total)
	return result
}

// SumDim sums along dim, keeping it as size 1 when keepDim is set.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumDim", x, dim, keepDim, false)
}

// MeanDim averages along dim, keeping it as size 1 when keepDim is set.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meanDim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(op string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	requireFloat32(op, x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, inner := splitAround(shape, dim)
	size := shape[dim]

	result := tensor.MustNewRaw(reducedShape(shape, dim, keepDim), tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var acc float32
			base := o*size*inner + in
			for s := 0; s < size; s++ {
				acc += src[base+s*inner]
			}
			if mean {
				acc /= float32(size)
			}
			dst[o*inner+in] = acc
		}
	}
	return result
}

// Argmax returns int32 indices of the maximum along dim; dim is removed.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, inner := splitAround(shape, dim)
	size := shape[dim]

	result := tensor.MustNewRaw(reducedShape(shape, dim, false), tensor.Int32, cpu.device)
	src, dst := x.AsFloat32(), result.AsInt32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			best := 0
			bestVal := src[base]
			for s := 1; s < size; s++ {
				if v := src[base+s*inner]; v > bestVal {
					best, bestVal = s, v
				}
			}
			dst[o*inner+in] = int32(best)
		}
	}
	return result
}

// Softmax computes a numerically stable softmax along dim.
//
// Slices whose entries are all -Inf (fully masked) produce zeros instead of
// NaN, so a fully masked row carries no probability mass.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, inner := splitAround(shape, dim)
	size := shape[dim]

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()

	parallel.For(outer*inner, func(r int) {
		o, in := r/inner, r%inner
		base := o*size*inner + in
		softmaxStrided(dst, src, base, size, inner)
	}, parallel.DefaultConfig())

	return result
}

func softmaxStrided(dst, src []float32, base, size, stride int) {
	maxVal := float32(math.Inf(-1))
	for s := 0; s < size; s++ {
		if v := src[base+s*stride]; v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(float64(maxVal), -1) {
		for s := 0; s < size; s++ {
			dst[base+s*stride] = 0
		}
		return
	}

	var sum float64
	for s := 0; s < size; s++ {
		e := math.Exp(float64(src[base+s*stride] - maxVal))
		dst[base+s*stride] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for s := 0; s < size; s++ {
		dst[base+s*stride] *= inv
	}
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}

func requireFloat32(op string, x *tensor.RawTensor) {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 supported, got %s", op, x.DType()))
	}
}

package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reshape returns a copy of t with a new shape of equal element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	result, err := tensor.NewRaw(newShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes dimensions. With no axes all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", rank, len(axes)))
	}

	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw(outShape, t.DType(), cpu.device)
	srcStrides := t.Strides()
	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()

	// permStrides[i] is the source stride of output dimension i.
	permStrides := make([]int, rank)
	for i, ax := range axes {
		permStrides[i] = srcStrides[ax]
	}

	coord := make([]int, rank)
	n := outShape.NumElements()
	srcIdx := 0
	for i := 0; i < n; i++ {
		copy(dst[i*elem:(i+1)*elem], src[srcIdx*elem:(srcIdx+1)*elem])
		// Odometer increment over output coordinates.
		for d := rank - 1; d >= 0; d-- {
			coord[d]++
			srcIdx += permStrides[d]
			if coord[d] < outShape[d] {
				break
			}
			srcIdx -= coord[d] * permStrides[d]
			coord[d] = 0
		}
	}

	return result
}

// Expand broadcasts t to newShape.
func (cpu *CPUBackend) Expand(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out, _, err := tensor.BroadcastShapes(t.Shape(), newShape)
	if err != nil || !out.Equal(newShape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", t.Shape(), newShape))
	}

	result := tensor.MustNewRaw(newShape, t.DType(), cpu.device)
	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()
	shape, strides := t.Shape(), t.Strides()
	for i := 0; i < newShape.NumElements(); i++ {
		si := tensor.BroadcastIndex(i, newShape, shape, strides)
		copy(dst[i*elem:(i+1)*elem], src[si*elem:(si+1)*elem])
	}
	return result
}

// Narrow returns elements [start, start+length) along dim.
func (cpu *CPUBackend) Narrow(t *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := t.Shape()
	dim = shape.NormalizeDim(dim)
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result := tensor.MustNewRaw(outShape, t.DType(), cpu.device)

	outer, inner := splitAround(shape, dim)
	elem := t.DType().Size()
	rowBytes := inner * elem
	src, dst := t.Data(), result.Data()
	for o := 0; o < outer; o++ {
		srcOff := (o*shape[dim] + start) * rowBytes
		dstOff := o * length * rowBytes
		copy(dst[dstOff:dstOff+length*rowBytes], src[srcOff:srcOff+length*rowBytes])
	}
	return result
}

// splitAround returns the product of dimensions before and after dim.
func splitAround(shape tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, inner
}

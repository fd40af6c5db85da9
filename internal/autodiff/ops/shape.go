package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// ReshapeOp represents a reshape. The gradient is reshaped back.
type ReshapeOp struct{ unary }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unary{input: input, output: output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp represents an axis permutation.
// Backward applies the inverse permutation.
type TransposeOp struct {
	unary
	axes []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes means full reversal.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	rank := len(input.Shape())
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	return &TransposeOp{unary: unary{input: input, output: output}, axes: append([]int(nil), axes...)}
}

// Backward transposes the gradient with the inverse permutation.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// ExpandOp represents broadcasting to a larger shape.
// Backward sums over the broadcast dimensions.
type ExpandOp struct{ unary }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{unary{input: input, output: output}}
}

// Backward reduces the gradient to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}
}

// NarrowOp represents slicing [start, start+length) along dim.
// Backward scatters the gradient into a zero tensor of the input shape.
type NarrowOp struct {
	unary
	dim, start int
}

// NewNarrowOp creates a new NarrowOp. dim must already be normalized.
func NewNarrowOp(input, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{unary: unary{input: input, output: output}, dim: dim, start: start}
}

// Backward pads the gradient with zeros outside the slice.
func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	grad := zerosLike(op.input, backend)

	outer := 1
	for i := 0; i < op.dim; i++ {
		outer *= inShape[i]
	}
	inner := 1
	for i := op.dim + 1; i < len(inShape); i++ {
		inner *= inShape[i]
	}
	length := outputGrad.Shape()[op.dim]

	src, dst := outputGrad.AsFloat32(), grad.AsFloat32()
	for o := 0; o < outer; o++ {
		srcOff := o * length * inner
		dstOff := (o*inShape[op.dim] + op.start) * inner
		copy(dst[dstOff:dstOff+length*inner], src[srcOff:srcOff+length*inner])
	}
	return []*tensor.RawTensor{grad}
}

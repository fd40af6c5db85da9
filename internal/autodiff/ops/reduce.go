package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// SumOp represents reduction of all elements to a scalar.
// Backward broadcasts the scalar gradient to the input shape.
type SumOp struct{ unary }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{unary{input: input, output: output}}
}

// Backward expands the gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.input.Shape())}
}

// SumDimOp represents summation along one dimension.
type SumDimOp struct {
	unary
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be normalized.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{unary: unary{input: input, output: output}, dim: dim, keepDim: keepDim}
}

// Backward broadcasts the gradient back along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandReduced(outputGrad, op.input.Shape(), op.dim, op.keepDim, backend)}
}

// MeanDimOp represents averaging along one dimension.
type MeanDimOp struct {
	unary
	dim     int
	keepDim bool
}

// NewMeanDimOp creates a new MeanDimOp. dim must already be normalized.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{unary: unary{input: input, output: output}, dim: dim, keepDim: keepDim}
}

// Backward broadcasts grad / n back along the reduced dimension.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	n := float32(op.input.Shape()[op.dim])
	grad := expandReduced(outputGrad, op.input.Shape(), op.dim, op.keepDim, backend)
	return []*tensor.RawTensor{backend.MulScalar(grad, 1/n)}
}

func expandReduced(grad *tensor.RawTensor, inputShape tensor.Shape, dim int, keepDim bool, backend tensor.Backend) *tensor.RawTensor {
	if !keepDim {
		grad = backend.Reshape(grad, keepDimShape(inputShape, dim))
	}
	return backend.Expand(grad, inputShape)
}

// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation records its inputs and output during the forward pass and
// computes input gradients during the backward pass:
//   - AddOp, SubOp, MulOp, DivOp: broadcasting arithmetic
//   - MatMulOp, BatchMatMulOp: matrix products (d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad)
//   - ReshapeOp, TransposeOp, ExpandOp, NarrowOp: shape manipulation
//   - ExpOp, LogOp, SqrtOp, RsqrtOp, ReLUOp, MulScalarOp, AddScalarOp: element-wise math
//   - SoftmaxOp, SumOp, SumDimOp, MeanDimOp: normalization and reductions
//   - WhereOp, EmbeddingOp, CrossEntropyOp: selection, lookup and loss
package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs(); nil entries mean no gradient.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the differentiable input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// unary holds the single input and output shared by element-wise operations.
type unary struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensor.
func (u unary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{u.input}
}

// Output returns the output tensor.
func (u unary) Output() *tensor.RawTensor {
	return u.output
}

// binary holds the two inputs and output of arithmetic operations.
type binary struct {
	a, b   *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (o binary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{o.a, o.b}
}

// Output returns the output tensor.
func (o binary) Output() *tensor.RawTensor {
	return o.output
}

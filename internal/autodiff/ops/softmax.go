package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// SoftmaxOp represents softmax along an arbitrary dimension.
//
// Forward (for each slice along dim):
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
//
// Backward:
//
//	∂L/∂x_j = softmax_j * (∂L/∂softmax_j - Σ_i ∂L/∂softmax_i * softmax_i)
//
// Entries masked to -Inf have softmax 0 and therefore receive no gradient.
type SoftmaxOp struct {
	unary
	dim int
}

// NewSoftmaxOp creates a new SoftmaxOp. dim must already be normalized.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{unary: unary{input: input, output: output}, dim: dim}
}

// Backward computes the gradient with respect to the input.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dot := backend.SumDim(backend.Mul(outputGrad, op.output), op.dim, true)
	return []*tensor.RawTensor{backend.Mul(op.output, backend.Sub(outputGrad, dot))}
}

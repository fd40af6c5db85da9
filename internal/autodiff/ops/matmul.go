package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// MatMulOp represents 2D matrix multiplication: output = a @ b.
//
// Backward:
//
//	∂L/∂a = ∂L/∂out @ bᵀ
//	∂L/∂b = aᵀ @ ∂L/∂out
type MatMulOp struct{ binary }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients for both operands.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(op.b, 1, 0)),
		backend.MatMul(backend.Transpose(op.a, 1, 0), outputGrad),
	}
}

// BatchMatMulOp represents batched matrix multiplication over 3D/4D tensors.
// The gradient formulas match MatMulOp with the last two axes transposed.
type BatchMatMulOp struct{ binary }

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients for both operands.
func (op *BatchMatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.BatchMatMul(outputGrad, swapLast(op.b, backend)),
		backend.BatchMatMul(swapLast(op.a, backend), outputGrad),
	}
}

// swapLast transposes the final two axes.
func swapLast(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	rank := len(t.Shape())
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	axes[rank-2], axes[rank-1] = axes[rank-1], axes[rank-2]
	return backend.Transpose(t, axes...)
}

package ops

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// WhereOp represents a conditional selection: output = where(cond, x, y).
//
// Forward: output[i] = x[i] if cond[i] else y[i]
//
// Backward:
//
//	grad_x = where(cond, grad_out, 0)
//	grad_y = where(cond, 0, grad_out)
//
// Each gradient is then reduced to its operand's (possibly broadcast) shape.
// The condition tensor has no gradient.
type WhereOp struct {
	condition *tensor.RawTensor
	x         *tensor.RawTensor
	y         *tensor.RawTensor
	output    *tensor.RawTensor
}

// NewWhereOp creates a new where operation.
func NewWhereOp(condition, x, y, output *tensor.RawTensor) *WhereOp {
	return &WhereOp{
		condition: condition,
		x:         x,
		y:         y,
		output:    output,
	}
}

// Inputs returns the input tensors (x and y).
func (op *WhereOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.x, op.y}
}

// Output returns the output tensor.
func (op *WhereOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the gradient to the branch that was selected.
func (op *WhereOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	zero := tensor.MustNewRaw(tensor.Shape{}, outputGrad.DType(), backend.Device())

	gradX := backend.Where(op.condition, outputGrad, zero)
	gradY := backend.Where(op.condition, zero, outputGrad)

	return []*tensor.RawTensor{
		reduceBroadcast(gradX, op.x.Shape(), backend),
		reduceBroadcast(gradY, op.y.Shape(), backend),
	}
}

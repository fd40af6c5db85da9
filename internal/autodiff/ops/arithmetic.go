package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// AddOp represents element-wise addition: output = a + b.
//
// Backward: ∂L/∂a = ∂L/∂out, ∂L/∂b = ∂L/∂out, each reduced over broadcast dims.
type AddOp struct{ binary }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients for a and b.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(outputGrad, op.b.Shape(), backend),
	}
}

// SubOp represents element-wise subtraction: output = a - b.
type SubOp struct{ binary }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients: ∂L/∂a = grad, ∂L/∂b = -grad.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), op.b.Shape(), backend),
	}
}

// MulOp represents element-wise multiplication: output = a * b.
type MulOp struct{ binary }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients: ∂L/∂a = grad * b, ∂L/∂b = grad * a.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, op.b), op.a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, op.a), op.b.Shape(), backend),
	}
}

// DivOp represents element-wise division: output = a / b.
type DivOp struct{ binary }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{binary{a: a, b: b, output: output}}
}

// Backward computes gradients: ∂L/∂a = grad / b, ∂L/∂b = -grad * a / b².
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.Div(outputGrad, op.b)
	// -grad * out / b == -grad * a / b²
	gradB := backend.MulScalar(backend.Div(backend.Mul(outputGrad, op.output), op.b), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, op.a.Shape(), backend),
		reduceBroadcast(gradB, op.b.Shape(), backend),
	}
}

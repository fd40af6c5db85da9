package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// MulScalarOp represents output = x * s.
type MulScalarOp struct {
	unary
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{unary: unary{input: input, output: output}, scalar: scalar}
}

// Backward computes ∂L/∂x = grad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// AddScalarOp represents output = x + s. The gradient passes through.
type AddScalarOp struct{ unary }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{unary{input: input, output: output}}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// ExpOp represents output = exp(x); ∂out/∂x = out.
type ExpOp struct{ unary }

// NewExpOp creates a new ExpOp.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unary{input: input, output: output}}
}

// Backward computes grad * exp(x).
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = ln(x); ∂out/∂x = 1/x.
type LogOp struct{ unary }

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{unary{input: input, output: output}}
}

// Backward computes grad / x.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// SqrtOp represents output = sqrt(x); ∂out/∂x = 1 / (2·sqrt(x)).
type SqrtOp struct{ unary }

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unary{input: input, output: output}}
}

// Backward computes grad * 0.5 / sqrt(x).
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(backend.Div(outputGrad, op.output), 0.5)}
}

// RsqrtOp represents output = 1/sqrt(x); ∂out/∂x = -0.5 · out³.
type RsqrtOp struct{ unary }

// NewRsqrtOp creates a new RsqrtOp.
func NewRsqrtOp(input, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{unary{input: input, output: output}}
}

// Backward computes grad * -0.5 * out³.
func (op *RsqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	cube := backend.Mul(backend.Mul(op.output, op.output), op.output)
	return []*tensor.RawTensor{backend.MulScalar(backend.Mul(outputGrad, cube), -0.5)}
}

// ReLUOp represents output = max(0, x); ∂out/∂x = 1 if x > 0 else 0.
type ReLUOp struct{ unary }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unary{input: input, output: output}}
}

// Backward masks the gradient where the input was not positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input, backend)
	in, g, dst := op.input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
	for i, v := range in {
		if v > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

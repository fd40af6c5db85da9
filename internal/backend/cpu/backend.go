// Package cpu implements the CPU backend with gonum BLAS matrix products.
package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
//nolint:revive // CPUBackend reads better than cpu.Backend at call sites.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.CoarseConfig(),
	}
}

// WithParallelism returns a copy of the backend using cfg for batched work.
func (cpu *CPUBackend) WithParallelism(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: cpu.device, par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y }, func(x, y int32) int32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y }, func(x, y int32) int32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y }, func(x, y int32) int32 { return x * y })
}

// Div performs element-wise division with broadcasting.
// Integer division by zero panics.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y }, func(x, y int32) int32 { return x / y })
}

func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	i32 func(x, y int32) int32,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch a.DType() {
	case tensor.Float32:
		broadcastBinary(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), outShape, a, b, f32)
	case tensor.Int32:
		broadcastBinary(result.AsInt32(), a.AsInt32(), b.AsInt32(), outShape, a, b, i32)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return result
}

// broadcastBinary applies f over the broadcast of a and b into out.
func broadcastBinary[T float32 | int32 | bool, R float32 | int32 | bool](
	out []R, a, b []T, outShape tensor.Shape, ar, br *tensor.RawTensor, f func(x, y T) R,
) {
	if ar.Shape().Equal(outShape) && br.Shape().Equal(outShape) {
		for i := range out {
			out[i] = f(a[i], b[i])
		}
		return
	}

	// Scalar right-hand side is the most common broadcast (mask fill, bias scalars).
	if ar.Shape().Equal(outShape) && len(b) == 1 {
		y := b[0]
		for i := range out {
			out[i] = f(a[i], y)
		}
		return
	}

	aShape, bShape := ar.Shape(), br.Shape()
	aStrides, bStrides := ar.Strides(), br.Strides()
	for i := range out {
		ai := tensor.BroadcastIndex(i, outShape, aShape, aStrides)
		bi := tensor.BroadcastIndex(i, outShape, bShape, bStrides)
		out[i] = f(a[ai], b[bi])
	}
}

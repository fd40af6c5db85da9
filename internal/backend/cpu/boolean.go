package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Equal compares element-wise with broadcasting and returns a Bool tensor.
func (cpu *CPUBackend) Equal(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("equal", a, b, true)
}

// NotEqual compares element-wise with broadcasting and returns a Bool tensor.
func (cpu *CPUBackend) NotEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("notEqual", a, b, false)
}

func (cpu *CPUBackend) compare(op string, a, b *tensor.RawTensor, eq bool) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := tensor.MustNewRaw(outShape, tensor.Bool, cpu.device)
	out := result.AsBool()

	switch a.DType() {
	case tensor.Float32:
		broadcastBinary(out, a.AsFloat32(), b.AsFloat32(), outShape, a, b, func(x, y float32) bool { return (x == y) == eq })
	case tensor.Int32:
		broadcastBinary(out, a.AsInt32(), b.AsInt32(), outShape, a, b, func(x, y int32) bool { return (x == y) == eq })
	case tensor.Bool:
		broadcastBinary(out, a.AsBool(), b.AsBool(), outShape, a, b, func(x, y bool) bool { return (x == y) == eq })
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return result
}

// And computes the logical AND of two Bool tensors with broadcasting.
func (cpu *CPUBackend) And(a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != tensor.Bool || b.DType() != tensor.Bool {
		panic(fmt.Sprintf("and: expected bool tensors, got %s and %s", a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("and: %v", err))
	}
	result := tensor.MustNewRaw(outShape, tensor.Bool, cpu.device)
	broadcastBinary(result.AsBool(), a.AsBool(), b.AsBool(), outShape, a, b, func(x, y bool) bool { return x && y })
	return result
}

// Not computes the logical NOT of a Bool tensor.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Bool {
		panic(fmt.Sprintf("not: expected bool tensor, got %s", x.DType()))
	}
	result := tensor.MustNewRaw(x.Shape(), tensor.Bool, cpu.device)
	dst := result.AsBool()
	for i, v := range x.AsBool() {
		dst[i] = !v
	}
	return result
}

// Where selects x where cond is true and y elsewhere.
// cond, x and y broadcast to a common shape.
func (cpu *CPUBackend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	if cond.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", cond.DType()))
	}
	if x.DType() != y.DType() {
		panic(fmt.Sprintf("where: dtype mismatch %s vs %s", x.DType(), y.DType()))
	}

	xy, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(cond.Shape(), xy)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	result := tensor.MustNewRaw(outShape, x.DType(), cpu.device)
	c := cond.AsBool()
	elem := x.DType().Size()
	xs, ys, dst := x.Data(), y.Data(), result.Data()

	for i := 0; i < outShape.NumElements(); i++ {
		ci := tensor.BroadcastIndex(i, outShape, cond.Shape(), cond.Strides())
		if c[ci] {
			xi := tensor.BroadcastIndex(i, outShape, x.Shape(), x.Strides())
			copy(dst[i*elem:(i+1)*elem], xs[xi*elem:(xi+1)*elem])
		} else {
			yi := tensor.BroadcastIndex(i, outShape, y.Shape(), y.Strides())
			copy(dst[i*elem:(i+1)*elem], ys[yi*elem:(yi+1)*elem])
		}
	}
	return result
}

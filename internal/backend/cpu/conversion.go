package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Cast converts x to dtype. Bool converts to 1/0 and numbers convert to
// bool as x != 0. Float to int truncates toward zero.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}
	result := tensor.MustNewRaw(x.Shape(), dtype, cpu.device)

	switch x.DType() {
	case tensor.Float32:
		castFrom(x.AsFloat32(), result)
	case tensor.Int32:
		castFrom(x.AsInt32(), result)
	case tensor.Bool:
		src := x.AsBool()
		vals := make([]int32, len(src))
		for i, v := range src {
			if v {
				vals[i] = 1
			}
		}
		castFrom(vals, result)
	default:
		panic(fmt.Sprintf("cast: unsupported dtype %s", x.DType()))
	}
	return result
}

func castFrom[T float32 | int32](src []T, dst *tensor.RawTensor) {
	switch dst.DType() {
	case tensor.Float32:
		out := dst.AsFloat32()
		for i, v := range src {
			out[i] = float32(v)
		}
	case tensor.Int32:
		out := dst.AsInt32()
		for i, v := range src {
			out[i] = int32(v)
		}
	case tensor.Bool:
		out := dst.AsBool()
		for i, v := range src {
			out[i] = v != 0
		}
	default:
		panic(fmt.Sprintf("cast: unsupported dtype %s", dst.DType()))
	}
}

func exp64(v float32) float64 { return math.Exp(float64(v)) }

func log64(v float64) float64 { return math.Log(v) }

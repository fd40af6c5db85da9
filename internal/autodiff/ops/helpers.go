package ops

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	result := grad
	// Leading dimensions that the target does not have are summed away.
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	shape := result.Shape()
	for i, d := range targetShape {
		if d == 1 && shape[i] != 1 {
			result = backend.SumDim(result, i, true)
			shape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// keepDimShape returns shape with dim restored as size 1.
func keepDimShape(inputShape tensor.Shape, dim int) tensor.Shape {
	out := inputShape.Clone()
	out[dim] = 1
	return out
}

func zerosLike(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return tensor.MustNewRaw(t.Shape(), t.DType(), backend.Device())
}

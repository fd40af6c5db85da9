package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Normal creates a tensor with values drawn from N(0, std²).
func Normal[B tensor.Backend](shape tensor.Shape, std float32, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Randn[float32](shape, rng, backend)
	data := t.Data()
	for i := range data {
		data[i] *= std
	}
	return t
}

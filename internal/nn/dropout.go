package nn

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Dropout zeroes elements with probability P during training and scales
// the survivors by 1/(1-P). In Eval mode it is the identity.
//
// The generator is owned by the model; forward passes on one model must
// not run concurrently in Train mode.
type Dropout[B tensor.Backend] struct {
	P   float32
	rng *rand.Rand
}

// NewDropout creates a dropout site with drop probability p in [0, 1).
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic("dropout probability must be in [0, 1)")
	}
	return &Dropout[B]{P: p, rng: rng}
}

// Forward applies dropout according to mode.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	if d == nil || mode != Train || d.P == 0 {
		return x
	}

	scale := 1 / (1 - d.P)
	mask := tensor.Zeros[float32](x.Shape(), x.Backend())
	data := mask.Data()
	for i := range data {
		if d.rng.Float32() >= d.P {
			data[i] = scale
		}
	}
	return x.Mul(mask)
}

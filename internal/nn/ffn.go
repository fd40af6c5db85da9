package nn

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// FeedForward is the position-wise network linear2(dropout(relu(linear1(x)))).
// It never mixes information across sequence positions.
type FeedForward[B tensor.Backend] struct {
	Linear1 *Linear[B]
	Linear2 *Linear[B]
	dropout *Dropout[B]
}

// NewFeedForward creates a d_model -> d_ff -> d_model network.
func NewFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, rng *rand.Rand, backend B) *FeedForward[B] {
	return &FeedForward[B]{
		Linear1: NewLinear(dModel, dFF, rng, backend),
		Linear2: NewLinear(dFF, dModel, rng, backend),
		dropout: NewDropout[B](dropout, rng),
	}
}

// Forward applies the network to x [..., d_model].
func (f *FeedForward[B]) Forward(x *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	h := f.Linear1.Forward(x).ReLU()
	return f.Linear2.Forward(f.dropout.Forward(h, mode))
}

// Parameters returns the parameters of both linear layers.
func (f *FeedForward[B]) Parameters() []*Parameter[B] {
	return sortedParameters(f.NamedParameters())
}

// NamedParameters returns parameters under linear1 and linear2.
func (f *FeedForward[B]) NamedParameters() map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B], 4)
	withPrefix(named, "linear1", f.Linear1.NamedParameters())
	withPrefix(named, "linear2", f.Linear2.NamedParameters())
	return named
}

package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Linear implements a fully connected layer applied to the last dimension.
//
// Performs y = x @ Wᵀ + b where:
//   - x has shape [..., in_features]
//   - W has shape [out_features, in_features]
//   - b has shape [out_features]
//   - y has shape [..., out_features]
//
// Leading dimensions are flattened for the matrix product and restored
// afterwards, so the layer acts independently on every position.
//
// Weights use Xavier/Glorot initialization, biases start at zero.
//
// Example:
//
//	layer := nn.NewLinear(512, 2048, rng, backend)
//	out := layer.Forward(x) // [batch, seq, 512] -> [batch, seq, 2048]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
}

// NewLinear creates a new Linear layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)
	bias := tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
	}
}

// Forward computes x @ Wᵀ + b over the last dimension.
// Panics if the last dimension does not equal in_features.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) == 0 || inputShape[len(inputShape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected last dimension %d, got shape %v", l.inFeatures, inputShape))
	}

	flat := input
	if len(inputShape) != 2 {
		flat = input.Reshape(-1, l.inFeatures)
	}

	output := flat.MatMul(l.weight.Tensor().T())
	output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))

	if len(inputShape) != 2 {
		outShape := inputShape.Clone()
		outShape[len(outShape)-1] = l.outFeatures
		output = output.Reshape(outShape...)
	}
	return output
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// NamedParameters returns {"weight", "bias"}.
func (l *Linear[B]) NamedParameters() map[string]*Parameter[B] {
	return map[string]*Parameter[B]{
		"weight": l.weight,
		"bias":   l.bias,
	}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// DefaultLayerNormEpsilon is the variance floor used by the encoder and decoder layers.
const DefaultLayerNormEpsilon = 1e-5

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - gamma is the learnable scale [d_model], initialized to ones
//   - beta is the learnable shift [d_model], initialized to zeros
//   - mean and (biased) variance are computed along the last dimension
//
// Example:
//
//	norm := nn.NewLayerNorm(512, 1e-5, backend)
//	out := norm.Forward(x) // [..., 512] -> [..., 512]
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B]
	Beta    *Parameter[B]
	Epsilon float32
}

// NewLayerNorm creates a new LayerNorm layer.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   NewParameter("gamma", tensor.Ones[float32](tensor.Shape{normalizedShape}, backend)),
		Beta:    NewParameter("beta", tensor.Zeros[float32](tensor.Shape{normalizedShape}, backend)),
		Epsilon: epsilon,
	}
}

// Forward normalizes x over its last dimension.
func (ln *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	normalized := centered.Mul(variance.AddScalar(ln.Epsilon).Rsqrt())

	// gamma/beta [d] broadcast over all leading dimensions.
	return normalized.Mul(ln.Gamma.Tensor()).Add(ln.Beta.Tensor())
}

// Parameters returns [gamma, beta].
func (ln *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.Gamma, ln.Beta}
}

// NamedParameters returns {"gamma", "beta"}.
func (ln *LayerNorm[B]) NamedParameters() map[string]*Parameter[B] {
	return map[string]*Parameter[B]{
		"gamma": ln.Gamma,
		"beta":  ln.Beta,
	}
}

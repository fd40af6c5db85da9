package nn

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// EncoderLayer is a post-norm Transformer encoder block:
//
//	x = LayerNorm(x + Dropout(SelfAttention(x, x, x, src_mask)))
//	x = LayerNorm(x + Dropout(FeedForward(x)))
type EncoderLayer[B tensor.Backend] struct {
	SelfAttn *MultiHeadAttention[B]
	FFN      *FeedForward[B]
	Norm1    *LayerNorm[B]
	Norm2    *LayerNorm[B]

	dropout1 *Dropout[B]
	dropout2 *Dropout[B]
}

// NewEncoderLayer creates an encoder block.
// Returns ErrHeadsDivisibility if dModel is not divisible by numHeads.
func NewEncoderLayer[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, rng *rand.Rand, backend B) (*EncoderLayer[B], error) {
	attn, err := NewMultiHeadAttention(dModel, numHeads, dropout, rng, backend)
	if err != nil {
		return nil, err
	}
	return &EncoderLayer[B]{
		SelfAttn: attn,
		FFN:      NewFeedForward(dModel, dFF, dropout, rng, backend),
		Norm1:    NewLayerNorm(dModel, DefaultLayerNormEpsilon, backend),
		Norm2:    NewLayerNorm(dModel, DefaultLayerNormEpsilon, backend),
		dropout1: NewDropout[B](dropout, rng),
		dropout2: NewDropout[B](dropout, rng),
	}, nil
}

// Forward runs the block on x [batch, seq, d_model].
func (l *EncoderLayer[B]) Forward(x *tensor.Tensor[float32, B], srcMask Mask[B], mode Mode) *tensor.Tensor[float32, B] {
	attn := l.SelfAttn.Forward(x, x, x, srcMask, mode)
	x = l.Norm1.Forward(x.Add(l.dropout1.Forward(attn, mode)))

	ff := l.FFN.Forward(x, mode)
	return l.Norm2.Forward(x.Add(l.dropout2.Forward(ff, mode)))
}

// Parameters returns all parameters of the block.
func (l *EncoderLayer[B]) Parameters() []*Parameter[B] {
	return sortedParameters(l.NamedParameters())
}

// NamedParameters returns parameters under self_attn, ffn, norm1 and norm2.
func (l *EncoderLayer[B]) NamedParameters() map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B])
	withPrefix(named, "self_attn", l.SelfAttn.NamedParameters())
	withPrefix(named, "ffn", l.FFN.NamedParameters())
	withPrefix(named, "norm1", l.Norm1.NamedParameters())
	withPrefix(named, "norm2", l.Norm2.NamedParameters())
	return named
}

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DecoderLayer is a post-norm Transformer decoder block.
//
// Self-attention always precedes cross-attention:
//
//	x = LayerNorm(x + Dropout(SelfAttention(x, x, x, tgt_mask)))
//	x = LayerNorm(x + Dropout(CrossAttention(x, enc, enc, src_mask)))
//	x = LayerNorm(x + Dropout(FeedForward(x)))
type DecoderLayer[B tensor.Backend] struct {
	SelfAttn  *MultiHeadAttention[B]
	CrossAttn *MultiHeadAttention[B]
	FFN       *FeedForward[B]
	Norm1     *LayerNorm[B]
	Norm2     *LayerNorm[B]
	Norm3     *LayerNorm[B]

	dropout1 *Dropout[B]
	dropout2 *Dropout[B]
	dropout3 *Dropout[B]
}

// DecoderWeights holds the attention weights of one decoder block.
type DecoderWeights[B tensor.Backend] struct {
	Self  *tensor.Tensor[float32, B] // [b, h, tgt_len, tgt_len]
	Cross *tensor.Tensor[float32, B] // [b, h, tgt_len, src_len]
}

// NewDecoderLayer creates a decoder block.
// Returns ErrHeadsDivisibility if dModel is not divisible by numHeads.
func NewDecoderLayer[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, rng *rand.Rand, backend B) (*DecoderLayer[B], error) {
	self, err := NewMultiHeadAttention(dModel, numHeads, dropout, rng, backend)
	if err != nil {
		return nil, err
	}
	cross, err := NewMultiHeadAttention(dModel, numHeads, dropout, rng, backend)
	if err != nil {
		return nil, err
	}
	return &DecoderLayer[B]{
		SelfAttn:  self,
		CrossAttn: cross,
		FFN:       NewFeedForward(dModel, dFF, dropout, rng, backend),
		Norm1:     NewLayerNorm(dModel, DefaultLayerNormEpsilon, backend),
		Norm2:     NewLayerNorm(dModel, DefaultLayerNormEpsilon, backend),
		Norm3:     NewLayerNorm(dModel, DefaultLayerNormEpsilon, backend),
		dropout1:  NewDropout[B](dropout, rng),
		dropout2:  NewDropout[B](dropout, rng),
		dropout3:  NewDropout[B](dropout, rng),
	}, nil
}

// Forward runs the block on x [batch, tgt_len, d_model] against the
// encoder output enc [batch, src_len, d_model].
func (l *DecoderLayer[B]) Forward(
	x, enc *tensor.Tensor[float32, B],
	tgtMask, srcMask Mask[B],
	mode Mode,
) *tensor.Tensor[float32, B] {
	out, _ := l.ForwardWithWeights(x, enc, tgtMask, srcMask, mode)
	return out
}

// ForwardWithWeights is Forward that also returns both attention weight tensors.
func (l *DecoderLayer[B]) ForwardWithWeights(
	x, enc *tensor.Tensor[float32, B],
	tgtMask, srcMask Mask[B],
	mode Mode,
) (*tensor.Tensor[float32, B], DecoderWeights[B]) {
	var w DecoderWeights[B]

	selfAttn, selfW := l.SelfAttn.ForwardWithWeights(x, x, x, tgtMask, mode)
	w.Self = selfW
	x = l.Norm1.Forward(x.Add(l.dropout1.Forward(selfAttn, mode)))

	crossAttn, crossW := l.CrossAttn.ForwardWithWeights(x, enc, enc, srcMask, mode)
	w.Cross = crossW
	x = l.Norm2.Forward(x.Add(l.dropout2.Forward(crossAttn, mode)))

	ff := l.FFN.Forward(x, mode)
	return l.Norm3.Forward(x.Add(l.dropout3.Forward(ff, mode))), w
}

// Parameters returns all parameters of the block.
func (l *DecoderLayer[B]) Parameters() []*Parameter[B] {
	return sortedParameters(l.NamedParameters())
}

// NamedParameters returns parameters under self_attn, cross_attn, ffn and norm1..norm3.
func (l *DecoderLayer[B]) NamedParameters() map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B])
	withPrefix(named, "self_attn", l.SelfAttn.NamedParameters())
	withPrefix(named, "cross_attn", l.CrossAttn.NamedParameters())
	withPrefix(named, "ffn", l.FFN.NamedParameters())
	withPrefix(named, "norm1", l.Norm1.NamedParameters())
	withPrefix(named, "norm2", l.Norm2.NamedParameters())
	withPrefix(named, "norm3", l.Norm3.NamedParameters())
	return named
}

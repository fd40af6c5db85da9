package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// MultiHeadAttention implements multi-head attention.
//
// Architecture:
//
//	Q = query @ W_q, K = key @ W_k, V = value @ W_v
//	Split Q, K, V into num_heads of size d_k = d_model / num_heads
//	Attention per head: softmax(Q·Kᵀ / sqrt(d_k))·V
//	Concat heads, output = concat @ W_o
//
// Used for encoder self-attention, decoder masked self-attention and
// decoder cross-attention.
//
// Example:
//
//	mha, err := nn.NewMultiHeadAttention(512, 8, 0.1, rng, backend)
//	out := mha.Forward(x, x, x, nn.NoMask[B](), nn.Eval) // [b, s, 512]
type MultiHeadAttention[B tensor.Backend] struct {
	WQ *Linear[B]
	WK *Linear[B]
	WV *Linear[B]
	WO *Linear[B]

	dropout  *Dropout[B]
	numHeads int
	headDim  int
	dModel   int
}

// NewMultiHeadAttention creates a multi-head attention module.
// Returns ErrHeadsDivisibility if dModel is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](
	dModel, numHeads int,
	dropout float32,
	rng *rand.Rand,
	backend B,
) (*MultiHeadAttention[B], error) {
	if numHeads <= 0 || dModel%numHeads != 0 {
		return nil, fmt.Errorf("%w: d_model=%d, num_heads=%d", ErrHeadsDivisibility, dModel, numHeads)
	}

	return &MultiHeadAttention[B]{
		WQ:       NewLinear(dModel, dModel, rng, backend),
		WK:       NewLinear(dModel, dModel, rng, backend),
		WV:       NewLinear(dModel, dModel, rng, backend),
		WO:       NewLinear(dModel, dModel, rng, backend),
		dropout:  NewDropout[B](dropout, rng),
		numHeads: numHeads,
		headDim:  dModel / numHeads,
		dModel:   dModel,
	}, nil
}

// Forward computes attention of query [b, q_len, d_model] over
// key/value [b, k_len, d_model]. Output shape equals the query shape.
func (m *MultiHeadAttention[B]) Forward(query, key, value *tensor.Tensor[float32, B], mask Mask[B], mode Mode) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(query, key, value, mask, mode)
	return out
}

// ForwardWithWeights is Forward that also returns the attention weights
// [b, num_heads, q_len, k_len].
func (m *MultiHeadAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask Mask[B],
	mode Mode,
) (output, weights *tensor.Tensor[float32, B]) {
	qShape := query.Shape()
	if len(qShape) != 3 {
		panic(fmt.Sprintf("MultiHeadAttention: expected [batch, seq, d_model] query, got %v", qShape))
	}
	batch, qLen := qShape[0], qShape[1]

	q := m.splitHeads(m.WQ.Forward(query))
	k := m.splitHeads(m.WK.Forward(key))
	v := m.splitHeads(m.WV.Forward(value))

	attn, weights := ScaledDotProductAttention(q, k, v, mask, m.dropout, mode)

	// [b, h, q, d_k] -> [b, q, h, d_k] -> [b, q, d_model]
	concat := attn.Transpose(0, 2, 1, 3).Reshape(batch, qLen, m.dModel)
	return m.WO.Forward(concat), weights
}

// splitHeads reshapes [b, s, d_model] to [b, h, s, d_k].
func (m *MultiHeadAttention[B]) splitHeads(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	return x.Reshape(shape[0], shape[1], m.numHeads, m.headDim).Transpose(0, 2, 1, 3)
}

// NumHeads returns the number of attention heads.
func (m *MultiHeadAttention[B]) NumHeads() int {
	return m.numHeads
}

// Parameters returns all projection weights and biases.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	return sortedParameters(m.NamedParameters())
}

// NamedParameters returns parameters under w_q, w_k, w_v and w_o.
func (m *MultiHeadAttention[B]) NamedParameters() map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B], 8)
	withPrefix(named, "w_q", m.WQ.NamedParameters())
	withPrefix(named, "w_k", m.WK.NamedParameters())
	withPrefix(named, "w_v", m.WV.NamedParameters())
	withPrefix(named, "w_o", m.WO.NamedParameters())
	return named
}

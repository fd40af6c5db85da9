package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Mask is an optional boolean attention mask. True marks a key position
// that a query position may attend to.
//
// The zero value is NoMask. Use MaskOf to wrap a tensor.
type Mask[B tensor.Backend] struct {
	t *tensor.Tensor[bool, B]
}

// NoMask returns the absent mask: every key is attendable.
func NoMask[B tensor.Backend]() Mask[B] {
	return Mask[B]{}
}

// MaskOf wraps a bool tensor broadcastable to [batch, heads, q_len, k_len].
func MaskOf[B tensor.Backend](t *tensor.Tensor[bool, B]) Mask[B] {
	return Mask[B]{t: t}
}

// Present reports whether the mask holds a tensor.
func (m Mask[B]) Present() bool {
	return m.t != nil
}

// Tensor returns the mask tensor, or nil for NoMask.
func (m Mask[B]) Tensor() *tensor.Tensor[bool, B] {
	return m.t
}

// And combines two masks. An absent side leaves the other unchanged.
func (m Mask[B]) And(other Mask[B]) Mask[B] {
	switch {
	case !m.Present():
		return other
	case !other.Present():
		return m
	default:
		return MaskOf(tensor.And(m.t, other.t))
	}
}

// PaddingMask marks non-pad tokens of tokens [batch, seq] as attendable.
// The result has shape [batch, 1, 1, seq] and broadcasts over heads and
// query positions.
func PaddingMask[B tensor.Backend](tokens *tensor.Tensor[int32, B], padIndex int32) Mask[B] {
	shape := tokens.Shape()
	pad := tensor.Full[int32](tensor.Shape{}, padIndex, tokens.Backend())
	return MaskOf(tokens.NotEqual(pad).Reshape(shape[0], 1, 1, shape[1]))
}

// CausalMask returns a [1, 1, seqLen, seqLen] mask where query i may
// attend to key j only if j <= i.
func CausalMask[B tensor.Backend](seqLen int, backend B) Mask[B] {
	m := tensor.Zeros[bool](tensor.Shape{1, 1, seqLen, seqLen}, backend)
	data := m.Data()
	for i := 0; i < seqLen; i++ {
		for j := 0; j <= i; j++ {
			data[i*seqLen+j] = true
		}
	}
	return MaskOf(m)
}

package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// ScaledDotProductAttention computes softmax(Q·Kᵀ / sqrt(d_k))·V.
//
// Shapes:
//   - q: [batch, heads, q_len, d_k]
//   - k: [batch, heads, k_len, d_k]
//   - v: [batch, heads, k_len, d_v]
//   - mask: NoMask, or bool broadcastable to [batch, heads, q_len, k_len]
//
// Scores at positions where the mask is false are replaced by -inf, so
// they receive exactly zero weight. Dropout (may be nil) is applied to the
// weights in Train mode before they are multiplied with V.
//
// Returns the output [batch, heads, q_len, d_v] and the attention weights
// [batch, heads, q_len, k_len] (before dropout).
//
// Callers must ensure every query row has at least one attendable key.
// A fully masked row yields all-zero weights.
func ScaledDotProductAttention[B tensor.Backend](
	q, k, v *tensor.Tensor[float32, B],
	mask Mask[B],
	dropout *Dropout[B],
	mode Mode,
) (output, weights *tensor.Tensor[float32, B]) {
	qShape := q.Shape()
	if len(qShape) != 4 {
		panic(fmt.Sprintf("attention: expected 4D query [batch, heads, q_len, d_k], got %v", qShape))
	}
	dk := qShape[3]

	scores := q.BatchMatMul(k.Transpose(0, 1, 3, 2)).MulScalar(float32(1 / math.Sqrt(float64(dk))))

	if mask.Present() {
		negInf := tensor.Full[float32](tensor.Shape{}, float32(math.Inf(-1)), q.Backend())
		scores = tensor.Where(mask.Tensor(), scores, negInf)
	}

	weights = scores.Softmax(-1)
	output = dropout.Forward(weights, mode).BatchMatMul(v)
	return output, weights
}

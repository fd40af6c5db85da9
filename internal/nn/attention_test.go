package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestCausalMask(t *testing.T) {
	m := CausalMask(4, cpu.New())
	require.True(t, m.Present())
	mt := m.Tensor()
	require.Equal(t, tensor.Shape{1, 1, 4, 4}, mt.Shape())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, j <= i, mt.At(0, 0, i, j), "i=%d j=%d", i, j)
		}
	}
}

func TestPaddingMask(t *testing.T) {
	backend := cpu.New()
	tokens, err := tensor.FromSlice([]int32{5, 6, 0, 7, 0, 0}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	mt := PaddingMask(tokens, 0).Tensor()
	require.Equal(t, tensor.Shape{2, 1, 1, 3}, mt.Shape())
	assert.Equal(t, []bool{true, true, false, true, false, false}, mt.Data())
}

func TestMask_And(t *testing.T) {
	backend := cpu.New()
	none := NoMask[*cpu.CPUBackend]()
	assert.False(t, none.Present())
	assert.Nil(t, none.Tensor())

	causal := CausalMask(3, backend)
	assert.Same(t, causal.Tensor(), none.And(causal).Tensor())
	assert.Same(t, causal.Tensor(), causal.And(none).Tensor())

	tokens, err := tensor.FromSlice([]int32{1, 2, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	combined := PaddingMask(tokens, 0).And(causal).Tensor()
	require.Equal(t, tensor.Shape{1, 1, 3, 3}, combined.Shape())
	assert.Equal(t, []bool{
		true, false, false,
		true, true, false,
		true, true, false,
	}, combined.Data())
}

func TestScaledDotProductAttention_WeightsSumToOne(t *testing.T) {
	backend := cpu.New()
	rng := tensor.NewRNG(11)
	q := tensor.Randn[float32](tensor.Shape{2, 2, 4, 8}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{2, 2, 6, 8}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{2, 2, 6, 8}, rng, backend)

	out, weights := ScaledDotProductAttention(q, k, v, NoMask[*cpu.CPUBackend](), nil, Eval)
	require.Equal(t, tensor.Shape{2, 2, 4, 8}, out.Shape())
	require.Equal(t, tensor.Shape{2, 2, 4, 6}, weights.Shape())

	w := weights.Data()
	for row := 0; row < len(w)/6; row++ {
		var sum float64
		for j := 0; j < 6; j++ {
			sum += float64(w[row*6+j])
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestScaledDotProductAttention_MaskedKeysGetZeroWeight(t *testing.T) {
	backend := cpu.New()
	rng := tensor.NewRNG(12)
	q := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, rng, backend)

	tokens, err := tensor.FromSlice([]int32{4, 9, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)

	_, weights := ScaledDotProductAttention(q, k, v, PaddingMask(tokens, 0), nil, Eval)
	for i := 0; i < 3; i++ {
		assert.Equal(t, float32(0), weights.At(0, 0, i, 2))
		assert.InDelta(t, 1.0, weights.At(0, 0, i, 0)+weights.At(0, 0, i, 1), 1e-5)
	}
}

func TestScaledDotProductAttention_SingleKey(t *testing.T) {
	backend := cpu.New()
	rng := tensor.NewRNG(13)
	q := tensor.Randn[float32](tensor.Shape{1, 2, 1, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 2, 1, 4}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 2, 1, 4}, rng, backend)

	out, weights := ScaledDotProductAttention(q, k, v, CausalMask(1, backend), nil, Eval)
	for _, w := range weights.Data() {
		assert.Equal(t, float32(1), w)
	}
	// With a single key the output is exactly V.
	for i, x := range out.Data() {
		assert.False(t, math.IsNaN(float64(x)))
		assert.InDelta(t, v.Data()[i], x, 1e-6)
	}
}

func TestMultiHeadAttention_OutputShapeMatchesQuery(t *testing.T) {
	backend := cpu.New()
	cases := []struct {
		dModel, heads, qLen, kLen int
	}{
		{8, 1, 3, 3},
		{8, 2, 5, 5},
		{12, 3, 2, 7},
		{16, 16, 4, 1},
	}
	for _, tc := range cases {
		mha, err := NewMultiHeadAttention(tc.dModel, tc.heads, 0.1, tensor.NewRNG(1), backend)
		require.NoError(t, err)

		rng := tensor.NewRNG(2)
		q := tensor.Randn[float32](tensor.Shape{2, tc.qLen, tc.dModel}, rng, backend)
		kv := tensor.Randn[float32](tensor.Shape{2, tc.kLen, tc.dModel}, rng, backend)

		out, weights := mha.ForwardWithWeights(q, kv, kv, NoMask[*cpu.CPUBackend](), Eval)
		assert.Equal(t, q.Shape(), out.Shape())
		assert.Equal(t, tensor.Shape{2, tc.heads, tc.qLen, tc.kLen}, weights.Shape())
	}
}

func TestMultiHeadAttention_HeadsDivisibility(t *testing.T) {
	mha, err := NewMultiHeadAttention(10, 3, 0, tensor.NewRNG(1), cpu.New())
	assert.Nil(t, mha)
	assert.True(t, errors.Is(err, ErrHeadsDivisibility))

	_, err = NewMultiHeadAttention(8, 0, 0, tensor.NewRNG(1), cpu.New())
	assert.True(t, errors.Is(err, ErrHeadsDivisibility))
}

func TestMultiHeadAttention_CausalWeights(t *testing.T) {
	backend := cpu.New()
	mha, err := NewMultiHeadAttention(8, 2, 0.1, tensor.NewRNG(5), backend)
	require.NoError(t, err)

	x := tensor.Randn[float32](tensor.Shape{1, 5, 8}, tensor.NewRNG(6), backend)
	_, weights := mha.ForwardWithWeights(x, x, x, CausalMask(5, backend), Eval)

	for h := 0; h < 2; h++ {
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				assert.Equal(t, float32(0), weights.At(0, h, i, j))
			}
		}
	}
}

func TestMultiHeadAttention_NamedParameters(t *testing.T) {
	mha, err := NewMultiHeadAttention(8, 2, 0, tensor.NewRNG(1), cpu.New())
	require.NoError(t, err)

	named := mha.NamedParameters()
	assert.Len(t, named, 8)
	for _, proj := range []string{"w_q", "w_k", "w_v", "w_o"} {
		assert.Contains(t, named, proj+".weight")
		assert.Contains(t, named, proj+".bias")
	}
	assert.Len(t, mha.Parameters(), 8)
}

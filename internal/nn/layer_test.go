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

func TestEncoderLayer_Forward(t *testing.T) {
	backend := cpu.New()
	layer, err := NewEncoderLayer(8, 2, 16, 0.1, tensor.NewRNG(1), backend)
	require.NoError(t, err)

	tokens, err := tensor.FromSlice([]int32{3, 4, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	x := tensor.Randn[float32](tensor.Shape{1, 3, 8}, tensor.NewRNG(2), backend)

	out := layer.Forward(x, PaddingMask(tokens, 0), Eval)
	require.Equal(t, tensor.Shape{1, 3, 8}, out.Shape())
	for _, v := range out.Data() {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}

	// Eval mode is deterministic.
	again := layer.Forward(x, PaddingMask(tokens, 0), Eval)
	assert.Equal(t, out.Data(), again.Data())
}

func TestEncoderLayer_TrainModeUsesDropout(t *testing.T) {
	backend := cpu.New()
	layer, err := NewEncoderLayer(8, 2, 16, 0.5, tensor.NewRNG(1), backend)
	require.NoError(t, err)

	x := tensor.Randn[float32](tensor.Shape{2, 4, 8}, tensor.NewRNG(2), backend)
	eval := layer.Forward(x, NoMask[*cpu.CPUBackend](), Eval)
	train := layer.Forward(x, NoMask[*cpu.CPUBackend](), Train)
	assert.NotEqual(t, eval.Data(), train.Data())
}

func TestEncoderLayer_NamedParameters(t *testing.T) {
	layer, err := NewEncoderLayer(8, 2, 16, 0, tensor.NewRNG(1), cpu.New())
	require.NoError(t, err)

	named := layer.NamedParameters()
	// 4 projections * 2 + 2 ffn linears * 2 + 2 norms * 2
	assert.Len(t, named, 16)
	assert.Contains(t, named, "self_attn.w_q.weight")
	assert.Contains(t, named, "ffn.linear1.bias")
	assert.Contains(t, named, "norm2.gamma")
	assert.Len(t, layer.Parameters(), 16)
}

func TestEncoderLayer_HeadsDivisibility(t *testing.T) {
	_, err := NewEncoderLayer(10, 4, 16, 0, tensor.NewRNG(1), cpu.New())
	assert.True(t, errors.Is(err, ErrHeadsDivisibility))

	_, err = NewDecoderLayer(10, 4, 16, 0, tensor.NewRNG(1), cpu.New())
	assert.True(t, errors.Is(err, ErrHeadsDivisibility))
}

func TestDecoderLayer_ForwardWithWeights(t *testing.T) {
	backend := cpu.New()
	layer, err := NewDecoderLayer(8, 2, 16, 0.1, tensor.NewRNG(1), backend)
	require.NoError(t, err)

	rng := tensor.NewRNG(2)
	x := tensor.Randn[float32](tensor.Shape{2, 4, 8}, rng, backend)
	enc := tensor.Randn[float32](tensor.Shape{2, 6, 8}, rng, backend)

	src, err := tensor.FromSlice([]int32{
		1, 2, 3, 0, 0, 0,
		1, 2, 3, 4, 5, 6,
	}, tensor.Shape{2, 6}, backend)
	require.NoError(t, err)

	out, w := layer.ForwardWithWeights(x, enc, CausalMask(4, backend), PaddingMask(src, 0), Eval)
	require.Equal(t, tensor.Shape{2, 4, 8}, out.Shape())
	require.Equal(t, tensor.Shape{2, 2, 4, 4}, w.Self.Shape())
	require.Equal(t, tensor.Shape{2, 2, 4, 6}, w.Cross.Shape())

	for b := 0; b < 2; b++ {
		for h := 0; h < 2; h++ {
			for i := 0; i < 4; i++ {
				for j := i + 1; j < 4; j++ {
					assert.Equal(t, float32(0), w.Self.At(b, h, i, j))
				}
				// Batch 0 has three real source tokens.
				for j := 3; j < 6; j++ {
					if b == 0 {
						assert.Equal(t, float32(0), w.Cross.At(b, h, i, j))
					}
				}
			}
		}
	}

	plain := layer.Forward(x, enc, CausalMask(4, backend), PaddingMask(src, 0), Eval)
	assert.Equal(t, out.Data(), plain.Data())
}

func TestDecoderLayer_NamedParameters(t *testing.T) {
	layer, err := NewDecoderLayer(8, 2, 16, 0, tensor.NewRNG(1), cpu.New())
	require.NoError(t, err)

	named := layer.NamedParameters()
	assert.Len(t, named, 26)
	assert.Contains(t, named, "cross_attn.w_o.bias")
	assert.Contains(t, named, "norm3.beta")
}

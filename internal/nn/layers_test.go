package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestLinear_ForwardND(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(4, 3, tensor.NewRNG(1), backend)

	x := tensor.Randn[float32](tensor.Shape{2, 5, 4}, tensor.NewRNG(2), backend)
	out := layer.Forward(x)
	require.Equal(t, tensor.Shape{2, 5, 3}, out.Shape())

	// Position (1, 2) equals the 2D computation on that row alone.
	row, err := tensor.FromSlice(x.Data()[(1*5+2)*4:(1*5+3)*4], tensor.Shape{1, 4}, backend)
	require.NoError(t, err)
	single := layer.Forward(row)
	for j := 0; j < 3; j++ {
		assert.InDelta(t, single.At(0, j), out.At(1, 2, j), 1e-5)
	}
}

func TestLinear_WrongInputPanics(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(4, 3, tensor.NewRNG(1), backend)
	x := tensor.Zeros[float32](tensor.Shape{2, 5}, backend)
	assert.Panics(t, func() { layer.Forward(x) })
}

func TestLinear_NamedParameters(t *testing.T) {
	layer := NewLinear(4, 3, tensor.NewRNG(1), cpu.New())
	named := layer.NamedParameters()
	require.Len(t, named, 2)
	assert.Equal(t, tensor.Shape{3, 4}, named["weight"].Tensor().Shape())
	assert.Equal(t, tensor.Shape{3}, named["bias"].Tensor().Shape())
	assert.Equal(t, 15, CountParameters(layer.Parameters()))
}

func TestLinear_GradientsReachParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(3, 2, tensor.NewRNG(1), backend)

	backend.Tape().StartRecording()
	x := tensor.Ones[float32](tensor.Shape{4, 3}, backend)
	loss := layer.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)

	// d(sum)/d(bias) = batch size for every output unit.
	gb := grads[layer.Bias().Tensor().Raw()]
	require.NotNil(t, gb)
	assert.Equal(t, []float32{4, 4}, gb.AsFloat32())

	// d(sum)/d(W[o, i]) = sum over batch of x[:, i] = 4.
	gw := grads[layer.Weight().Tensor().Raw()]
	require.NotNil(t, gw)
	for _, v := range gw.AsFloat32() {
		assert.InDelta(t, 4.0, v, 1e-6)
	}
}

func TestEmbedding_Forward(t *testing.T) {
	backend := cpu.New()
	emb := NewEmbedding(10, 4, tensor.NewRNG(1), backend)

	ids, err := tensor.FromSlice([]int32{0, 3, 9, 3}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	out, err := emb.Forward(ids)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 2, 4}, out.Shape())

	w := emb.Weight.Tensor()
	for d := 0; d < 4; d++ {
		assert.Equal(t, w.At(3, d), out.At(0, 1, d))
		assert.Equal(t, w.At(3, d), out.At(1, 1, d))
		assert.Equal(t, w.At(9, d), out.At(1, 0, d))
	}
}

func TestEmbedding_IndexOutOfRange(t *testing.T) {
	backend := cpu.New()
	emb := NewEmbedding(10, 4, tensor.NewRNG(1), backend)

	for _, bad := range []int32{10, -1} {
		ids, err := tensor.FromSlice([]int32{1, bad}, tensor.Shape{1, 2}, backend)
		require.NoError(t, err)

		out, err := emb.Forward(ids)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "got %v", err)
	}
}

func TestLayerNorm_NormalizesLastDim(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm(4, DefaultLayerNormEpsilon, backend)

	x, err := tensor.FromSlice([]float32{
		1, 2, 3, 4,
		10, 10, 10, 10,
	}, tensor.Shape{2, 4}, backend)
	require.NoError(t, err)

	out := ln.Forward(x).Data()

	var mean, variance float64
	for _, v := range out[:4] {
		mean += float64(v)
	}
	mean /= 4
	for _, v := range out[:4] {
		variance += (float64(v) - mean) * (float64(v) - mean)
	}
	variance /= 4
	assert.InDelta(t, 0, mean, 1e-5)
	assert.InDelta(t, 1, variance, 1e-3)

	// A constant row normalizes to beta (zeros) without NaN.
	for _, v := range out[4:] {
		assert.InDelta(t, 0, v, 1e-5)
	}
}

func TestLayerNorm_AffineParameters(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm(2, DefaultLayerNormEpsilon, backend)
	copy(ln.Gamma.Tensor().Data(), []float32{2, 2})
	copy(ln.Beta.Tensor().Data(), []float32{1, -1})

	x, err := tensor.FromSlice([]float32{-1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	out := ln.Forward(x).Data()
	// Normalized input is approximately [-1, 1].
	assert.InDelta(t, -1, out[0], 1e-3)
	assert.InDelta(t, 1, out[1], 1e-3)
}

func TestDropout_EvalIsIdentity(t *testing.T) {
	backend := cpu.New()
	d := NewDropout[*cpu.CPUBackend](0.5, tensor.NewRNG(1))
	x := tensor.Ones[float32](tensor.Shape{100}, backend)
	assert.Same(t, x, d.Forward(x, Eval))

	var nilDropout *Dropout[*cpu.CPUBackend]
	assert.Same(t, x, nilDropout.Forward(x, Train))
}

func TestDropout_TrainScalesSurvivors(t *testing.T) {
	backend := cpu.New()
	d := NewDropout[*cpu.CPUBackend](0.25, tensor.NewRNG(7))
	x := tensor.Ones[float32](tensor.Shape{10000}, backend)

	out := d.Forward(x, Train).Data()
	zeros := 0
	for _, v := range out {
		if v == 0 {
			zeros++
			continue
		}
		assert.InDelta(t, 1/0.75, v, 1e-6)
	}
	rate := float64(zeros) / float64(len(out))
	assert.InDelta(t, 0.25, rate, 0.03)
}

func TestDropout_InvalidProbabilityPanics(t *testing.T) {
	assert.Panics(t, func() { NewDropout[*cpu.CPUBackend](1, tensor.NewRNG(1)) })
	assert.Panics(t, func() { NewDropout[*cpu.CPUBackend](-0.1, tensor.NewRNG(1)) })
}

func TestFeedForward_PositionWise(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward(4, 8, 0, tensor.NewRNG(3), backend)

	x := tensor.Randn[float32](tensor.Shape{1, 3, 4}, tensor.NewRNG(4), backend)
	out := ffn.Forward(x, Eval)
	require.Equal(t, tensor.Shape{1, 3, 4}, out.Shape())

	// Changing position 2 leaves positions 0 and 1 untouched.
	y := x.Clone()
	for d := 0; d < 4; d++ {
		y.Set(100, 0, 2, d)
	}
	out2 := ffn.Forward(y, Eval)
	for p := 0; p < 2; p++ {
		for d := 0; d < 4; d++ {
			assert.InDelta(t, out.At(0, p, d), out2.At(0, p, d), 1e-6)
		}
	}

	named := ffn.NamedParameters()
	assert.Contains(t, named, "linear1.weight")
	assert.Contains(t, named, "linear2.bias")
}

func TestCrossEntropyLoss_IgnoresPad(t *testing.T) {
	backend := cpu.New()
	criterion := NewCrossEntropyLoss(backend, 0)

	// Uniform logits over 4 classes: loss per counted position is ln 4.
	logits := tensor.Zeros[float32](tensor.Shape{1, 3, 4}, backend)
	targets, err := tensor.FromSlice([]int32{2, 0, 1}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)

	loss := criterion.Forward(logits, targets)
	assert.InDelta(t, math.Log(4), loss.Item(), 1e-5)

	allPad, err := tensor.FromSlice([]int32{0, 0, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(0), criterion.Forward(logits, allPad).Item())
}

func TestCrossEntropyLoss_Gradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	criterion := NewCrossEntropyLoss(backend, 0)

	backend.Tape().StartRecording()
	logits := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	targets, err := tensor.FromSlice([]int32{1, 0}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	loss := criterion.Forward(logits, targets)
	grads := autodiff.Backward(loss, backend)

	g := grads[logits.Raw()].AsFloat32()
	// Row 0: (softmax - onehot) / 1 = [0.5, -0.5]; row 1 ignored.
	assert.InDelta(t, 0.5, g[0], 1e-6)
	assert.InDelta(t, -0.5, g[1], 1e-6)
	assert.InDelta(t, 0, g[2], 1e-6)
	assert.InDelta(t, 0, g[3], 1e-6)
}

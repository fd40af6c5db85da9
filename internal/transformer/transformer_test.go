package transformer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func smallConfig() Config {
	return Config{
		SrcVocabSize: 10,
		TgtVocabSize: 12,
		DModel:       8,
		NumHeads:     2,
		NumLayers:    1,
		DFF:          16,
		MaxSeqLength: 10,
		Dropout:      0.1,
		Seed:         7,
	}
}

func tokens(t *testing.T, backend *cpu.CPUBackend, shape tensor.Shape, ids ...int32) *tensor.Tensor[int32, *cpu.CPUBackend] {
	t.Helper()
	out, err := tensor.FromSlice(ids, shape, backend)
	require.NoError(t, err)
	return out
}

func assertFinite(t *testing.T, values []float32) {
	t.Helper()
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite value %v at %d", v, i)
		}
	}
}

func TestTransformer_Forward(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 5}, 1, 2, 3, 0, 0)
	tgt := tokens(t, backend, tensor.Shape{1, 5}, 1, 2, 0, 0, 0)

	logits, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 5, 12}, logits.Shape())
	assertFinite(t, logits.Data())

	again, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, logits.Data(), again.Data())
}

func TestTransformer_ForwardBatchShapes(t *testing.T) {
	tests := []struct {
		name   string
		srcLen int
		tgtLen int
		batch  int
	}{
		{"equal lengths", 4, 4, 2},
		{"longer source", 7, 3, 3},
		{"longer target", 2, 6, 1},
		{"single tokens", 1, 1, 1},
	}

	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srcIDs := make([]int32, tt.batch*tt.srcLen)
			for i := range srcIDs {
				srcIDs[i] = int32(i%9 + 1)
			}
			tgtIDs := make([]int32, tt.batch*tt.tgtLen)
			for i := range tgtIDs {
				tgtIDs[i] = int32(i%11 + 1)
			}
			src := tokens(t, backend, tensor.Shape{tt.batch, tt.srcLen}, srcIDs...)
			tgt := tokens(t, backend, tensor.Shape{tt.batch, tt.tgtLen}, tgtIDs...)

			logits, err := m.Forward(src, tgt, nn.Eval)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{tt.batch, tt.tgtLen, 12}, logits.Shape())
			assertFinite(t, logits.Data())
		})
	}
}

func TestTransformer_TrainModeIsStochastic(t *testing.T) {
	backend := cpu.New()
	cfg := smallConfig()
	cfg.Dropout = 0.5
	m, err := New(cfg, backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 4}, 1, 2, 3, 4)
	tgt := tokens(t, backend, tensor.Shape{1, 4}, 1, 2, 3, 4)

	eval, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	train, err := m.Forward(src, tgt, nn.Train)
	require.NoError(t, err)
	assert.NotEqual(t, eval.Data(), train.Data())
}

func TestTransformer_SameSeedSameParameters(t *testing.T) {
	a, err := New(smallConfig(), cpu.New())
	require.NoError(t, err)
	b, err := New(smallConfig(), cpu.New())
	require.NoError(t, err)

	pa, pb := a.NamedParameters(), b.NamedParameters()
	require.Equal(t, ParameterNames(pa), ParameterNames(pb))
	for name, p := range pa {
		assert.Equal(t, p.Tensor().Data(), pb[name].Tensor().Data(), name)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		divisible bool
	}{
		{"heads do not divide d_model", func(c *Config) { c.DModel, c.NumHeads = 10, 4 }, false},
		{"zero heads", func(c *Config) { c.NumHeads = 0 }, true},
		{"zero layers", func(c *Config) { c.NumLayers = 0 }, true},
		{"tiny vocabulary", func(c *Config) { c.SrcVocabSize = 1 }, true},
		{"dropout of one", func(c *Config) { c.Dropout = 1 }, true},
		{"zero max length", func(c *Config) { c.MaxSeqLength = 0 }, true},
		{"zero d_ff", func(c *Config) { c.DFF = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, cpu.New())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Equal(t, !tt.divisible, errors.Is(err, nn.ErrHeadsDivisibility))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(100, 200)
	assert.Equal(t, 512, cfg.DModel)
	assert.Equal(t, 8, cfg.NumHeads)
	assert.Equal(t, 6, cfg.NumLayers)
	assert.Equal(t, 2048, cfg.DFF)
	assert.Equal(t, 5000, cfg.MaxSeqLength)
	assert.InDelta(t, 0.1, cfg.Dropout, 1e-7)
	assert.NoError(t, cfg.Validate())
}

func TestTransformer_InputErrors(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	ok := tokens(t, backend, tensor.Shape{1, 3}, 1, 2, 3)

	tests := []struct {
		name   string
		src    *tensor.Tensor[int32, *cpu.CPUBackend]
		tgt    *tensor.Tensor[int32, *cpu.CPUBackend]
		target error
	}{
		{"source too long", tokens(t, backend, tensor.Shape{1, 11}, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), ok, nn.ErrSequenceTooLong},
		{"target too long", ok, tokens(t, backend, tensor.Shape{1, 11}, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), nn.ErrSequenceTooLong},
		{"source index out of range", tokens(t, backend, tensor.Shape{1, 3}, 1, 10, 2), ok, nn.ErrIndexOutOfRange},
		{"target index out of range", ok, tokens(t, backend, tensor.Shape{1, 3}, 1, 12, 2), nn.ErrIndexOutOfRange},
		{"negative index", tokens(t, backend, tensor.Shape{1, 3}, 1, -1, 2), ok, nn.ErrIndexOutOfRange},
		{"batch mismatch", tokens(t, backend, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6), ok, nn.ErrInvalidShape},
		{"flat source", tokens(t, backend, tensor.Shape{3}, 1, 2, 3), ok, nn.ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logits, err := m.Forward(tt.src, tt.tgt, nn.Eval)
			assert.Nil(t, logits)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestTransformer_MaxLengthAccepted(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	ids := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 1}
	src := tokens(t, backend, tensor.Shape{1, 10}, ids...)
	tgt := tokens(t, backend, tensor.Shape{1, 10}, ids...)

	logits, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 10, 12}, logits.Shape())
}

func TestTransformer_EncoderIgnoresPadding(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	short := tokens(t, backend, tensor.Shape{1, 3}, 1, 2, 3)
	padded := tokens(t, backend, tensor.Shape{1, 6}, 1, 2, 3, 0, 0, 0)

	a, err := m.Encode(short, nn.Eval)
	require.NoError(t, err)
	b, err := m.Encode(padded, nn.Eval)
	require.NoError(t, err)

	for pos := range 3 {
		for d := range 8 {
			assert.InDelta(t, a.At(0, pos, d), b.At(0, pos, d), 1e-5, "pos %d dim %d", pos, d)
		}
	}

	// Content at masked positions must not leak into real positions.
	filler := tokens(t, backend, tensor.Shape{1, 6}, 1, 2, 3, 7, 8, 9)
	c, err := m.encode(filler, nn.PaddingMask(padded, PadIndex), nn.Eval)
	require.NoError(t, err)
	for pos := range 3 {
		for d := range 8 {
			assert.InDelta(t, b.At(0, pos, d), c.At(0, pos, d), 1e-5, "pos %d dim %d", pos, d)
		}
	}
}

func TestTransformer_LogitsIgnoreTargetPadding(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 4}, 4, 5, 6, 0)
	short := tokens(t, backend, tensor.Shape{1, 2}, 1, 2)
	padded := tokens(t, backend, tensor.Shape{1, 5}, 1, 2, 0, 0, 0)

	a, err := m.Forward(src, short, nn.Eval)
	require.NoError(t, err)
	b, err := m.Forward(src, padded, nn.Eval)
	require.NoError(t, err)

	for pos := range 2 {
		for v := range 12 {
			assert.InDelta(t, a.At(0, pos, v), b.At(0, pos, v), 1e-4)
		}
	}
}

func TestTransformer_CausalDecoderWeights(t *testing.T) {
	backend := cpu.New()
	cfg := smallConfig()
	cfg.NumLayers = 2
	m, err := New(cfg, backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 5}, 1, 2, 3, 0, 0)
	tgt := tokens(t, backend, tensor.Shape{1, 4}, 1, 2, 3, 4)

	weights, err := m.DecoderWeights(src, tgt)
	require.NoError(t, err)
	require.Len(t, weights, 2)

	for _, w := range weights {
		require.Equal(t, tensor.Shape{1, 2, 4, 4}, w.Self.Shape())
		require.Equal(t, tensor.Shape{1, 2, 4, 5}, w.Cross.Shape())
		for h := range 2 {
			for i := range 4 {
				for j := i + 1; j < 4; j++ {
					assert.Zero(t, w.Self.At(0, h, i, j), "future key %d for query %d", j, i)
				}
				for j := 3; j < 5; j++ {
					assert.Zero(t, w.Cross.At(0, h, i, j), "padded source key %d", j)
				}
			}
		}
	}
}

func TestTransformer_SingleTokenSource(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 1}, 5)
	tgt := tokens(t, backend, tensor.Shape{1, 3}, 1, 2, 3)

	logits, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	assertFinite(t, logits.Data())
}

func TestTransformer_DecodeMatchesForward(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{2, 3}, 1, 2, 0, 3, 4, 5)
	tgt := tokens(t, backend, tensor.Shape{2, 2}, 1, 2, 3, 0)

	want, err := m.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)

	enc, err := m.Encode(src, nn.Eval)
	require.NoError(t, err)
	got, err := m.Decode(tgt, enc, src, nn.Eval)
	require.NoError(t, err)

	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)
}

func TestTransformer_NamedParameters(t *testing.T) {
	m, err := New(smallConfig(), cpu.New())
	require.NoError(t, err)

	named := m.NamedParameters()
	// 2 embeddings + 16 encoder + 26 decoder + 2 output
	assert.Len(t, named, 46)
	assert.Contains(t, named, "src_embed.weight")
	assert.Contains(t, named, "tgt_embed.weight")
	assert.Contains(t, named, "encoder.0.self_attn.w_q.weight")
	assert.Contains(t, named, "decoder.0.cross_attn.w_o.bias")
	assert.Contains(t, named, "output.weight")

	params := m.Parameters()
	require.Len(t, params, 46)
	names := ParameterNames(named)
	for i, p := range params {
		assert.Same(t, named[names[i]], p)
	}

	assert.Equal(t, tensor.Shape{12, 8}, named["output.weight"].Tensor().Shape())
	assert.Equal(t, tensor.Shape{10, 8}, named["src_embed.weight"].Tensor().Shape())
}

func TestTransformer_LearnedPositions(t *testing.T) {
	backend := cpu.New()
	cfg := smallConfig()
	cfg.LearnedPositions = true
	m, err := New(cfg, backend)
	require.NoError(t, err)

	named := m.NamedParameters()
	require.Contains(t, named, "positional.weight")
	assert.Equal(t, tensor.Shape{10, 8}, named["positional.weight"].Tensor().Shape())

	src := tokens(t, backend, tensor.Shape{1, 3}, 1, 2, 3)
	logits, err := m.Forward(src, src, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 12}, logits.Shape())
}

func TestTransformer_CreateMask(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	src := tokens(t, backend, tensor.Shape{1, 3}, 4, 5, 0)
	tgt := tokens(t, backend, tensor.Shape{1, 3}, 1, 2, 0)

	srcMask, tgtMask := m.CreateMask(src, tgt)
	require.True(t, srcMask.Present())
	require.True(t, tgtMask.Present())

	assert.Equal(t, tensor.Shape{1, 1, 1, 3}, srcMask.Tensor().Shape())
	assert.Equal(t, []bool{true, true, false}, srcMask.Tensor().Data())

	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, tgtMask.Tensor().Shape())
	assert.Equal(t, []bool{
		true, false, false,
		true, true, false,
		true, true, false,
	}, tgtMask.Tensor().Data())
}

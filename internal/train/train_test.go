package train

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

func tinyConfig() transformer.Config {
	return transformer.Config{
		SrcVocabSize: 10,
		TgtVocabSize: 10,
		DModel:       16,
		NumHeads:     2,
		NumLayers:    1,
		DFF:          32,
		MaxSeqLength: 8,
		Dropout:      0,
		Seed:         1,
	}
}

func newTrainer(t *testing.T, cfg Config, log logger.Logger) *Trainer[*cpu.CPUBackend] {
	t.Helper()
	model, err := transformer.New(tinyConfig(), autodiff.New(cpu.New()))
	require.NoError(t, err)
	return New(model, cfg, log)
}

func TestTrainer_OverfitsSinglePair(t *testing.T) {
	trainer := newTrainer(t, Config{LR: 0.01}, nil)
	backend := trainer.Model().Backend()

	src, err := tensor.FromSlice([]int32{3, 4, 5, 6}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)
	tgt, err := tensor.FromSlice([]int32{1, 6, 5, 4, 3, 2}, tensor.Shape{1, 6}, backend)
	require.NoError(t, err)

	var first, last StepResult
	for i := range 300 {
		last, err = trainer.Step(src, tgt)
		require.NoError(t, err)
		if i == 0 {
			first = last
		}
		if last.Accuracy == 1 && last.Loss < 0.05 {
			break
		}
	}

	assert.Less(t, last.Loss, first.Loss)
	assert.Equal(t, 5, last.Tokens)

	stats, err := trainer.Evaluate(context.Background(), []data.Batch{{
		Src: [][]int32{{3, 4, 5, 6}},
		Tgt: [][]int32{{1, 6, 5, 4, 3, 2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, float32(1), stats.Accuracy)
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestTrainer_StepIgnoresPadding(t *testing.T) {
	trainer := newTrainer(t, Config{LR: 0.001}, nil)
	backend := trainer.Model().Backend()

	src, err := tensor.FromSlice([]int32{3, 4, 0, 5, 6, 7}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	tgt, err := tensor.FromSlice([]int32{1, 8, 2, 0, 1, 9, 9, 2}, tensor.Shape{2, 4}, backend)
	require.NoError(t, err)

	res, err := trainer.Step(src, tgt)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Tokens)
	assert.Greater(t, res.Loss, float32(0))
	assert.Greater(t, res.GradNorm, float32(0))
	assert.Equal(t, 1, trainer.Steps())
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestTrainer_StepErrors(t *testing.T) {
	trainer := newTrainer(t, Config{}, nil)
	backend := trainer.Model().Backend()

	src, err := tensor.FromSlice([]int32{3, 4}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	short, err := tensor.FromSlice([]int32{1}, tensor.Shape{1, 1}, backend)
	require.NoError(t, err)

	_, err = trainer.Step(src, short)
	assert.True(t, errors.Is(err, ErrTargetTooShort))

	bad, err := tensor.FromSlice([]int32{1, 42}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	_, err = trainer.Step(src, bad)
	assert.True(t, transformer.IsInputError(err))
	assert.ErrorIs(t, err, nn.ErrIndexOutOfRange)

	badLast, err := tensor.FromSlice([]int32{1, 5, 42}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		_, err = trainer.Step(src, badLast)
	})
	assert.ErrorIs(t, err, nn.ErrIndexOutOfRange)
	assert.Equal(t, 0, trainer.Steps())
}

func TestTrainer_BadTargetInLastColumn(t *testing.T) {
	trainer := newTrainer(t, Config{}, nil)
	batches := []data.Batch{{Src: [][]int32{{3, 4}}, Tgt: [][]int32{{1, 5, 42}}}}

	var err error
	assert.NotPanics(t, func() {
		_, err = trainer.Fit(context.Background(), batches, 1)
	})
	assert.ErrorIs(t, err, nn.ErrIndexOutOfRange)

	assert.NotPanics(t, func() {
		_, err = trainer.Evaluate(context.Background(), batches)
	})
	assert.ErrorIs(t, err, nn.ErrIndexOutOfRange)
	assert.Equal(t, 0, trainer.Steps())
}

func TestTrainer_ClipAndWarmup(t *testing.T) {
	trainer := newTrainer(t, Config{LR: 0.01, ClipNorm: 1e-3, WarmupSteps: 4}, nil)
	backend := trainer.Model().Backend()

	src, err := tensor.FromSlice([]int32{3, 4}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	tgt, err := tensor.FromSlice([]int32{1, 5, 2}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)

	res, err := trainer.Step(src, tgt)
	require.NoError(t, err)
	assert.Greater(t, res.GradNorm, float32(1e-3))
	assert.InDelta(t, 0.0025, trainer.Optimizer().LR(), 1e-7)

	for range 5 {
		_, err = trainer.Step(src, tgt)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.01, trainer.Optimizer().LR(), 1e-7)
}

func TestTrainer_Fit(t *testing.T) {
	var buf bytes.Buffer
	trainer := newTrainer(t, Config{LR: 0.005, LogEvery: 1}, logger.Text(&buf, slog.LevelInfo))

	pairs := []data.Pair{
		{Src: []int32{3, 4}, Tgt: []int32{1, 4, 3, 2}},
		{Src: []int32{5, 6, 7}, Tgt: []int32{1, 7, 6, 5, 2}},
	}
	batches := data.Batches(pairs, 2, 8, nil)

	history, err := trainer.Fit(context.Background(), batches, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[2].Epoch)
	assert.Equal(t, 3, trainer.Steps())
	assert.Less(t, history[2].Loss, history[0].Loss)

	out := buf.String()
	assert.Contains(t, out, "train step")
	assert.Contains(t, out, "epoch done")
	assert.Contains(t, out, "grad_norm=")
}

func TestTrainer_FitCancelled(t *testing.T) {
	trainer := newTrainer(t, Config{}, logger.Nop())
	batches := data.Batches([]data.Pair{{Src: []int32{3}, Tgt: []int32{1, 2}}}, 1, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := trainer.Fit(ctx, batches, 5)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, history)
	assert.Equal(t, 0, trainer.Steps())
}

func TestAccuracy(t *testing.T) {
	backend := cpu.New()
	// argmax per position: 2, 0, 1
	logits, err := tensor.FromSlice([]float32{
		0, 1, 5,
		3, 1, 0,
		0, 2, 1,
	}, tensor.Shape{1, 3, 3}, backend)
	require.NoError(t, err)

	targets, err := tensor.FromSlice([]int32{2, 1, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	// Position 2 is padding; one of the remaining two is correct.
	assert.InDelta(t, 0.5, Accuracy(logits, targets, 0), 1e-7)

	allPad := tensor.Zeros[int32](tensor.Shape{1, 3}, backend)
	assert.Zero(t, Accuracy(logits, allPad, 0))
}

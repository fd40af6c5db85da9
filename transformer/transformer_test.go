package transformer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/autodiff"
	"github.com/born-ml/seq2seq/backend/cpu"
	"github.com/born-ml/seq2seq/generate"
	"github.com/born-ml/seq2seq/nn"
	"github.com/born-ml/seq2seq/serialization"
	"github.com/born-ml/seq2seq/tensor"
	"github.com/born-ml/seq2seq/train"
	"github.com/born-ml/seq2seq/transformer"
)

func config() transformer.Config {
	return transformer.Config{
		SrcVocabSize: 10,
		TgtVocabSize: 10,
		DModel:       16,
		NumHeads:     2,
		NumLayers:    1,
		DFF:          32,
		MaxSeqLength: 8,
		Seed:         11,
	}
}

func TestPublicAPI_ForwardAndErrors(t *testing.T) {
	backend := cpu.New()
	model, err := transformer.New(config(), backend)
	require.NoError(t, err)

	src, err := tensor.FromSlice([]int32{3, 4, 5, 0, 0}, tensor.Shape{1, 5}, backend)
	require.NoError(t, err)
	tgt, err := tensor.FromSlice([]int32{1, 6, 7, 0, 0}, tensor.Shape{1, 5}, backend)
	require.NoError(t, err)

	logits, err := model.Forward(src, tgt, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 5, 10}, logits.Shape())

	bad, err := tensor.FromSlice([]int32{42}, tensor.Shape{1, 1}, backend)
	require.NoError(t, err)
	_, err = model.Forward(bad, tgt, nn.Eval)
	assert.True(t, transformer.IsInputError(err))
	assert.ErrorIs(t, err, nn.ErrIndexOutOfRange)

	cfg := config()
	cfg.NumHeads = 3
	_, err = transformer.New(cfg, backend)
	assert.True(t, errors.Is(err, nn.ErrHeadsDivisibility))
	assert.ErrorIs(t, err, transformer.ErrInvalidConfig)
}

func TestPublicAPI_TrainSaveLoadGenerate(t *testing.T) {
	model, err := transformer.New(config(), autodiff.New(cpu.New()))
	require.NoError(t, err)
	trainer := train.New(model, train.Config{LR: 0.01}, nil)

	backend := model.Backend()
	src, err := tensor.FromSlice([]int32{3, 4, 5}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	tgt, err := tensor.FromSlice([]int32{1, 5, 4, 3, 2}, tensor.Shape{1, 5}, backend)
	require.NoError(t, err)

	var res train.StepResult
	for range 300 {
		res, err = trainer.Step(src, tgt)
		require.NoError(t, err)
		if res.Accuracy == 1 && res.Loss < 0.05 {
			break
		}
	}
	require.Equal(t, float32(1), res.Accuracy)
	require.Less(t, res.Loss, float32(0.05))

	path := filepath.Join(t.TempDir(), "reverse.born")
	require.NoError(t, serialization.SaveModel(path, model, &serialization.CheckpointMeta{Step: int64(trainer.Steps())}))

	loaded, file, err := serialization.LoadModel(path, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, int64(trainer.Steps()), file.Header.Checkpoint.Step)

	out, err := generate.Greedy(context.Background(), loaded, []int32{3, 4, 5}, generate.Config{
		MaxTokens:  6,
		StartToken: 1,
		EndToken:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 4, 3}, out.Tokens)
	assert.Equal(t, generate.StopEnd, out.Reason)
}

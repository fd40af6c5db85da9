// Package generate produces target sequences from a trained Transformer by
// autoregressive decoding.
//
// The source is encoded once. Each step re-runs the decoder over the whole
// target prefix (there is no key/value cache) and samples the token that
// follows its last position. Decoding stops at the end token, after
// MaxTokens tokens, or when the prefix reaches the model's maximum length.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// StopReason tells why decoding ended.
type StopReason string

// Stop reasons.
const (
	StopEnd       StopReason = "eos"
	StopMaxTokens StopReason = "max_tokens"
	StopMaxLength StopReason = "max_length"
)

// ErrEmptySource is returned when there is nothing to translate.
var ErrEmptySource = errors.New("empty source sequence")

// Config controls one decoding run.
type Config struct {
	// MaxTokens bounds the number of generated tokens.
	MaxTokens int

	// StartToken opens the target prefix.
	StartToken int32

	// EndToken stops decoding when produced; -1 disables.
	EndToken int32
}

// Result is a decoded sequence. Tokens excludes the start and end tokens.
type Result struct {
	Tokens []int32
	Reason StopReason
}

// Generator decodes with a fixed model and sampler. It is not safe for
// concurrent use because the sampler owns a random source.
type Generator[B tensor.Backend] struct {
	model   *transformer.Transformer[B]
	sampler *Sampler
}

// New creates a generator. A nil sampler decodes greedily.
func New[B tensor.Backend](model *transformer.Transformer[B], sampler *Sampler) *Generator[B] {
	if sampler == nil {
		sampler = NewSampler(GreedySampling())
	}
	return &Generator[B]{model: model, sampler: sampler}
}

// Greedy decodes src with argmax selection.
func Greedy[B tensor.Backend](ctx context.Context, model *transformer.Transformer[B], src []int32, cfg Config) (Result, error) {
	return New(model, nil).Generate(ctx, src, cfg)
}

// Generate decodes a single source sequence.
func (g *Generator[B]) Generate(ctx context.Context, src []int32, cfg Config) (Result, error) {
	if len(src) == 0 {
		return Result{}, ErrEmptySource
	}
	backend := g.model.Backend()
	srcT, err := tensor.FromSlice(src, tensor.Shape{1, len(src)}, backend)
	if err != nil {
		return Result{}, err
	}
	enc, err := g.model.Encode(srcT, nn.Eval)
	if err != nil {
		return Result{}, err
	}

	maxLen := g.model.Config().MaxSeqLength
	prefix := []int32{cfg.StartToken}
	for {
		if len(prefix)-1 >= cfg.MaxTokens {
			return Result{Tokens: prefix[1:], Reason: StopMaxTokens}, nil
		}
		if len(prefix) > maxLen {
			return Result{Tokens: prefix[1:], Reason: StopMaxLength}, nil
		}
		if err := ctx.Err(); err != nil {
			return Result{Tokens: prefix[1:]}, err
		}

		tgtT, err := tensor.FromSlice(prefix, tensor.Shape{1, len(prefix)}, backend)
		if err != nil {
			return Result{}, err
		}
		logits, err := g.model.Decode(tgtT, enc, srcT, nn.Eval)
		if err != nil {
			return Result{}, fmt.Errorf("decode step %d: %w", len(prefix), err)
		}

		next := g.sampler.Sample(lastPosition(logits), prefix[1:])
		if next == cfg.EndToken {
			return Result{Tokens: prefix[1:], Reason: StopEnd}, nil
		}
		prefix = append(prefix, next)
	}
}

// lastPosition returns the logits of the final target position of a
// [1, t, V] tensor with the padding id excluded.
func lastPosition[B tensor.Backend](logits *tensor.Tensor[float32, B]) []float32 {
	shape := logits.Shape()
	vocab := shape[2]
	data := logits.Data()
	last := append([]float32(nil), data[(shape[1]-1)*vocab:shape[1]*vocab]...)
	last[transformer.PadIndex] = float32(math.Inf(-1))
	return last
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package generate decodes target sequences from a trained model.
//
// Example:
//
//	res, err := generate.Greedy(ctx, model, src, generate.Config{
//	    MaxTokens:  32,
//	    StartToken: bos,
//	    EndToken:   eos,
//	})
package generate

import (
	"context"

	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// Generator decodes with a fixed model and sampler.
type Generator[B tensor.Backend] = generate.Generator[B]

// Config controls one decoding run.
type Config = generate.Config

// Result is a decoded sequence and the reason decoding stopped.
type Result = generate.Result

// StopReason tells why decoding ended.
type StopReason = generate.StopReason

// Stop reasons.
const (
	StopEnd       = generate.StopEnd
	StopMaxTokens = generate.StopMaxTokens
	StopMaxLength = generate.StopMaxLength
)

// SamplingConfig selects the next-token strategy.
type SamplingConfig = generate.SamplingConfig

// Sampler picks token ids from logits.
type Sampler = generate.Sampler

// Tokenizer is the text side of Translate.
type Tokenizer = generate.Tokenizer

// NewSampler creates a sampler.
func NewSampler(config SamplingConfig) *Sampler {
	return generate.NewSampler(config)
}

// New creates a generator. A nil sampler decodes greedily.
func New[B tensor.Backend](model *transformer.Transformer[B], sampler *Sampler) *Generator[B] {
	return generate.New(model, sampler)
}

// Greedy decodes src with argmax selection.
func Greedy[B tensor.Backend](ctx context.Context, model *transformer.Transformer[B], src []int32, cfg Config) (Result, error) {
	return generate.Greedy(ctx, model, src, cfg)
}

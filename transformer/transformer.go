// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package transformer provides the encoder-decoder Transformer model.
//
// Example:
//
//	cfg := transformer.DefaultConfig(srcVocab, tgtVocab)
//	model, err := transformer.New(cfg, cpu.New())
//	logits, err := model.Forward(src, tgt, nn.Eval) // [batch, tgt_len, tgt_vocab]
package transformer

import (
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// Transformer is the encoder-decoder model.
type Transformer[B tensor.Backend] = transformer.Transformer[B]

// Config holds the model hyperparameters.
type Config = transformer.Config

// PadIndex is the padding token id of sources and targets.
const PadIndex = transformer.PadIndex

// ErrInvalidConfig is returned for a configuration that cannot build a model.
var ErrInvalidConfig = transformer.ErrInvalidConfig

// DefaultConfig returns the base configuration for the vocabulary sizes.
func DefaultConfig(srcVocabSize, tgtVocabSize int) Config {
	return transformer.DefaultConfig(srcVocabSize, tgtVocabSize)
}

// New builds a model with freshly initialized parameters.
func New[B tensor.Backend](cfg Config, backend B) (*Transformer[B], error) {
	return transformer.New(cfg, backend)
}

// IsInputError reports whether err was caused by invalid token input.
func IsInputError(err error) bool {
	return transformer.IsInputError(err)
}

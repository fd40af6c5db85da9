// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the Transformer building blocks: attention, masks,
// encoder and decoder layers, embeddings and the cross-entropy loss.
//
// Every layer takes an explicit Mode; dropout is active only in Train.
package nn

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Mode selects training or evaluation behavior.
type Mode = nn.Mode

// Modes.
const (
	Eval  = nn.Eval
	Train = nn.Train
)

// Errors reported for invalid configuration or input.
var (
	ErrHeadsDivisibility = nn.ErrHeadsDivisibility
	ErrSequenceTooLong   = nn.ErrSequenceTooLong
	ErrIndexOutOfRange   = nn.ErrIndexOutOfRange
	ErrInvalidShape      = nn.ErrInvalidShape
)

// Parameter is a trainable tensor with its gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Module is implemented by every layer.
type Module[B tensor.Backend] = nn.Module[B]

// Mask is an optional boolean mask; true marks positions that may be attended.
type Mask[B tensor.Backend] = nn.Mask[B]

// NoMask returns the absent mask.
func NoMask[B tensor.Backend]() Mask[B] {
	return nn.NoMask[B]()
}

// PaddingMask returns a [b, 1, 1, s] mask that hides padIndex keys.
func PaddingMask[B tensor.Backend](tokens *tensor.Tensor[int32, B], padIndex int32) Mask[B] {
	return nn.PaddingMask(tokens, padIndex)
}

// CausalMask returns a [1, 1, n, n] mask that hides future positions.
func CausalMask[B tensor.Backend](seqLen int, backend B) Mask[B] {
	return nn.CausalMask(seqLen, backend)
}

// MultiHeadAttention is scaled dot-product attention over parallel heads.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates an attention block.
// Returns ErrHeadsDivisibility when dModel is not a multiple of numHeads.
func NewMultiHeadAttention[B tensor.Backend](dModel, numHeads int, dropout float32, rng *rand.Rand, backend B) (*MultiHeadAttention[B], error) {
	return nn.NewMultiHeadAttention(dModel, numHeads, dropout, rng, backend)
}

// EncoderLayer is self-attention followed by a feed-forward block.
type EncoderLayer[B tensor.Backend] = nn.EncoderLayer[B]

// NewEncoderLayer creates an encoder layer.
func NewEncoderLayer[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, rng *rand.Rand, backend B) (*EncoderLayer[B], error) {
	return nn.NewEncoderLayer(dModel, numHeads, dFF, dropout, rng, backend)
}

// DecoderLayer is masked self-attention, cross-attention and a feed-forward block.
type DecoderLayer[B tensor.Backend] = nn.DecoderLayer[B]

// NewDecoderLayer creates a decoder layer.
func NewDecoderLayer[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, rng *rand.Rand, backend B) (*DecoderLayer[B], error) {
	return nn.NewDecoderLayer(dModel, numHeads, dFF, dropout, rng, backend)
}

// DecoderWeights holds the attention weights of one decoder layer.
type DecoderWeights[B tensor.Backend] = nn.DecoderWeights[B]

// CrossEntropyLoss is the mean token cross-entropy over non-ignored targets.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss. Targets equal to ignoreIndex are skipped.
func NewCrossEntropyLoss[B tensor.Backend](backend B, ignoreIndex int) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend, ignoreIndex)
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train fits a model with teacher forcing and Adam.
package train

import (
	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/train"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// Trainer owns a model on an autodiff backend and its optimizer.
type Trainer[B tensor.Backend] = train.Trainer[B]

// Config controls optimization.
type Config = train.Config

// StepResult reports one optimization step.
type StepResult = train.StepResult

// EpochStats summarizes one pass over the batches.
type EpochStats = train.EpochStats

// New creates a trainer. A nil log discards output.
func New[B tensor.Backend](model *transformer.Transformer[*autodiff.AutodiffBackend[B]], cfg Config, log logger.Logger) *Trainer[B] {
	return train.New(model, cfg, log)
}

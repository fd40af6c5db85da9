// Package train fits a Transformer with teacher forcing.
//
// Each step feeds tgt[:, :-1] to the decoder and scores the logits against
// tgt[:, 1:]. Padding targets are ignored by the loss and by the accuracy.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, _ := transformer.New(cfg, backend)
//	trainer := train.New(model, train.Config{LR: 1e-4, ClipNorm: 1}, logger.Default())
//	history, err := trainer.Fit(ctx, batches, 10)
package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// ErrTargetTooShort is returned when a target batch has fewer than two
// positions, leaving nothing to predict.
var ErrTargetTooShort = errors.New("target sequences need at least two tokens")

// Config controls optimization.
type Config struct {
	// LR is the Adam learning rate (default 1e-4).
	LR float32

	// ClipNorm bounds the global gradient norm; 0 disables clipping.
	ClipNorm float32

	// WarmupSteps ramps the learning rate linearly from 0 to LR.
	WarmupSteps int

	// LogEvery logs every n-th step; 0 logs epochs only.
	LogEvery int
}

// StepResult reports one optimization step.
type StepResult struct {
	Loss     float32
	Accuracy float32
	GradNorm float32
	Correct  int // non-pad target tokens predicted exactly
	Tokens   int // non-pad target tokens
}

// EpochStats summarizes one pass over the batches.
type EpochStats struct {
	Epoch    int
	Steps    int
	Loss     float32 // mean over batches
	Accuracy float32 // over all non-pad target tokens
}

// Trainer owns a model on an autodiff backend and its optimizer.
type Trainer[B tensor.Backend] struct {
	model     *transformer.Transformer[*autodiff.AutodiffBackend[B]]
	backend   *autodiff.AutodiffBackend[B]
	params    []*nn.Parameter[*autodiff.AutodiffBackend[B]]
	optimizer optim.Optimizer
	criterion *nn.CrossEntropyLoss[*autodiff.AutodiffBackend[B]]
	cfg       Config
	log       logger.Logger
	steps     int
}

// New creates a trainer with an Adam optimizer over every model parameter.
func New[B tensor.Backend](
	model *transformer.Transformer[*autodiff.AutodiffBackend[B]],
	cfg Config,
	log logger.Logger,
) *Trainer[B] {
	if cfg.LR == 0 {
		cfg.LR = 1e-4
	}
	if log == nil {
		log = logger.Nop()
	}
	params := model.Parameters()
	return &Trainer[B]{
		model:     model,
		backend:   model.Backend(),
		params:    params,
		optimizer: optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}),
		criterion: nn.NewCrossEntropyLoss(model.Backend(), transformer.PadIndex),
		cfg:       cfg,
		log:       log,
	}
}

// Model returns the trained model.
func (t *Trainer[B]) Model() *transformer.Transformer[*autodiff.AutodiffBackend[B]] {
	return t.model
}

// Steps returns the number of optimization steps taken so far.
func (t *Trainer[B]) Steps() int {
	return t.steps
}

// Optimizer returns the optimizer, e.g. to inspect or change the learning rate.
func (t *Trainer[B]) Optimizer() optim.Optimizer {
	return t.optimizer
}

// Step runs forward, backward and one parameter update on a batch.
// src is [b, s] and tgt is [b, t] with t >= 2.
func (t *Trainer[B]) Step(src, tgt *tensor.Tensor[int32, *autodiff.AutodiffBackend[B]]) (StepResult, error) {
	shape := tgt.Shape()
	if len(shape) != 2 || shape[1] < 2 {
		return StepResult{}, fmt.Errorf("%w: got shape %v", ErrTargetTooShort, shape)
	}
	if err := t.model.ValidateTarget(tgt); err != nil {
		return StepResult{}, err
	}
	tgtIn := tgt.Narrow(1, 0, shape[1]-1)
	tgtOut := tgt.Narrow(1, 1, shape[1]-1)

	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	logits, err := t.model.Forward(src, tgtIn, nn.Train)
	if err != nil {
		return StepResult{}, err
	}
	loss := t.criterion.Forward(logits, tgtOut)
	grads := autodiff.Backward(loss, t.backend)

	norm := optim.ClipGradNorm(t.params, grads, t.cfg.ClipNorm)
	t.steps++
	if t.cfg.WarmupSteps > 0 {
		t.optimizer.SetLR(t.cfg.LR * min(1, float32(t.steps)/float32(t.cfg.WarmupSteps)))
	}
	t.optimizer.Step(grads)

	correct, total := countCorrect(logits, tgtOut, transformer.PadIndex)
	return StepResult{
		Loss:     loss.Item(),
		Accuracy: ratio(correct, total),
		GradNorm: norm,
		Correct:  correct,
		Tokens:   total,
	}, nil
}

// Evaluate computes mean loss and token accuracy in eval mode without
// recording gradients.
func (t *Trainer[B]) Evaluate(ctx context.Context, batches []data.Batch) (EpochStats, error) {
	t.backend.Tape().StopRecording()

	var (
		lossSum        float32
		correct, total int
	)
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return EpochStats{}, err
		}
		src, tgt, err := data.Tensors(batch, t.backend)
		if err != nil {
			return EpochStats{}, err
		}
		n := tgt.Shape()[1]
		if n < 2 {
			return EpochStats{}, fmt.Errorf("%w: got shape %v", ErrTargetTooShort, tgt.Shape())
		}
		if err := t.model.ValidateTarget(tgt); err != nil {
			return EpochStats{}, err
		}
		tgtOut := tgt.Narrow(1, 1, n-1)
		logits, err := t.model.Forward(src, tgt.Narrow(1, 0, n-1), nn.Eval)
		if err != nil {
			return EpochStats{}, err
		}
		lossSum += t.criterion.Forward(logits, tgtOut).Item()
		c, tokens := countCorrect(logits, tgtOut, transformer.PadIndex)
		correct += c
		total += tokens
	}

	stats := EpochStats{Steps: len(batches), Accuracy: ratio(correct, total)}
	if len(batches) > 0 {
		stats.Loss = lossSum / float32(len(batches))
	}
	return stats, nil
}

// Fit trains for epochs passes over batches. The context is checked before
// every step; on cancellation the history so far is returned with ctx.Err().
func (t *Trainer[B]) Fit(ctx context.Context, batches []data.Batch, epochs int) ([]EpochStats, error) {
	history := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		var (
			lossSum        float32
			correct, total int
		)
		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			src, tgt, err := data.Tensors(batch, t.backend)
			if err != nil {
				return history, err
			}
			res, err := t.Step(src, tgt)
			if err != nil {
				return history, fmt.Errorf("epoch %d step %d: %w", epoch, t.steps+1, err)
			}

			lossSum += res.Loss
			correct += res.Correct
			total += res.Tokens

			if t.cfg.LogEvery > 0 && t.steps%t.cfg.LogEvery == 0 {
				t.log.Info("train step",
					"epoch", epoch,
					"step", t.steps,
					"loss", res.Loss,
					"accuracy", res.Accuracy,
					"grad_norm", res.GradNorm,
					"lr", t.optimizer.LR(),
				)
			}
		}

		stats := EpochStats{
			Epoch:    epoch,
			Steps:    len(batches),
			Accuracy: ratio(correct, total),
		}
		if len(batches) > 0 {
			stats.Loss = lossSum / float32(len(batches))
		}
		history = append(history, stats)
		t.log.Info("epoch done", "epoch", epoch, "loss", stats.Loss, "accuracy", stats.Accuracy)
	}
	return history, nil
}

// Accuracy returns the fraction of non-ignored positions where the argmax
// of logits [b, t, V] equals targets [b, t]. It is 0 when every position
// is ignored.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B], ignoreIndex int32) float32 {
	return ratio(countCorrect(logits, targets, ignoreIndex))
}

func countCorrect[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B], ignoreIndex int32) (correct, total int) {
	predictions := logits.Argmax(-1).Data()
	for i, target := range targets.Data() {
		if target == ignoreIndex {
			continue
		}
		total++
		if predictions[i] == target {
			correct++
		}
	}
	return correct, total
}

func ratio(correct, total int) float32 {
	if total == 0 {
		return 0
	}
	return float32(correct) / float32(total)
}

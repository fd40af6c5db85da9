// Package optim implements the optimizers that update model parameters.
//
// This package provides:
//   - Optimizer interface: Step/ZeroGrad/LR shared by all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - ClipGradNorm: global-norm gradient clipping
//
// Optimizers mutate parameter tensors in place, so the RawTensor identity
// used to look up gradients never changes.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
//
//	backend.Tape().StartRecording()
//	logits, _ := model.Forward(src, tgtIn, nn.Train)
//	loss := criterion.Forward(logits, tgtOut)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"math"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Optimizer updates parameters from a gradient map produced by autodiff.Backward.
type Optimizer interface {
	// Step applies one update. Parameters without a gradient are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR changes the learning rate (for schedules).
	SetLR(lr float32)
}

// getGradient returns the float32 gradient of param, or nil when the
// parameter did not take part in the forward pass.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	if param == nil {
		return nil
	}
	g, ok := grads[param.Tensor().Raw()]
	if !ok || g == nil {
		return nil
	}
	return g.AsFloat32()
}

// ClipGradNorm rescales the gradients of params in place so that their
// global L2 norm is at most maxNorm. It returns the norm before clipping.
// maxNorm <= 0 disables clipping.
func ClipGradNorm[B tensor.Backend](params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, maxNorm float32) float32 {
	var sumSq float64
	for _, p := range params {
		for _, g := range getGradient(p, grads) {
			sumSq += float64(g) * float64(g)
		}
	}
	norm := float32(math.Sqrt(sumSq))

	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}

	scale := maxNorm / (norm + 1e-6)
	for _, p := range params {
		g := getGradient(p, grads)
		for i := range g {
			g[i] *= scale
		}
	}
	return norm
}

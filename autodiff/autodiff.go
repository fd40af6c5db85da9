// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff adds reverse-mode differentiation to a backend.
//
// Operations are recorded on a tape while recording is on; Backward walks
// the tape from a scalar loss and returns the gradient of every input.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(src, tgtIn, nn.Train), tgtOut)
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Backend is a backend that records operations for differentiation.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New wraps backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward returns the gradients of t with respect to every recorded input,
// keyed by raw tensor.
func Backward[T tensor.DType, B autodiff.BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

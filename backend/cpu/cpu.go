// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU backend. Matrix products run through gonum
// BLAS and element-wise loops are split across goroutines for large inputs.
package cpu

import "github.com/born-ml/seq2seq/internal/backend/cpu"

// Backend is the CPU backend.
type Backend = cpu.CPUBackend

// New returns a CPU backend.
func New() *Backend {
	return cpu.New()
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the typed tensors used by the seq2seq models.
//
// A Tensor pairs a RawTensor (shape, dtype and byte storage) with the
// backend that executes its operations. Float32 carries activations and
// parameters, Int32 carries token ids and Bool carries attention masks.
//
// Example:
//
//	backend := cpu.New()
//	src, err := tensor.FromSlice([]int32{5, 6, 7, 0}, tensor.Shape{1, 4}, backend)
package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the untyped storage behind a Tensor.
type RawTensor = tensor.RawTensor

// Shape lists the size of every dimension.
type Shape = tensor.Shape

// DType constrains the element types: float32, int32 and bool.
type DType = tensor.DType

// DataType identifies an element type at runtime.
type DataType = tensor.DataType

// Device identifies where tensor memory lives.
type Device = tensor.Device

// Backend executes tensor operations.
type Backend = tensor.Backend

// Data types.
const (
	Float32 = tensor.Float32
	Int32   = tensor.Int32
	Bool    = tensor.Bool
)

// CPU is the host memory device.
const CPU = tensor.CPU

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros returns a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Full returns a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn returns a tensor of standard normal samples drawn from rng.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// NewRNG returns the deterministic generator used for initialization.
func NewRNG(seed uint64) *rand.Rand {
	return tensor.NewRNG(seed)
}

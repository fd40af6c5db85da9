// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package serialization saves and loads models in the .born checkpoint format.
//
// Example:
//
//	err := serialization.SaveModel("model.born", model, nil)
//	model, file, err := serialization.LoadModel("model.born", cpu.New())
package serialization

import (
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// File is a decoded checkpoint.
type File = serialization.File

// Header is the JSON header of a checkpoint.
type Header = serialization.Header

// CheckpointMeta records the training position of a checkpoint.
type CheckpointMeta = serialization.CheckpointMeta

// Errors reported while reading checkpoints.
var (
	ErrInvalidMagic       = serialization.ErrInvalidMagic
	ErrUnsupportedVersion = serialization.ErrUnsupportedVersion
	ErrChecksumMismatch   = serialization.ErrChecksumMismatch
	ErrTensorNotFound     = serialization.ErrTensorNotFound
	ErrShapeMismatch      = serialization.ErrShapeMismatch
)

// SaveModel writes the model parameters and configuration to path.
func SaveModel[B tensor.Backend](path string, model *transformer.Transformer[B], ckpt *CheckpointMeta) error {
	return serialization.SaveModel(path, model, ckpt)
}

// LoadModel builds a model on backend from the checkpoint at path.
func LoadModel[B tensor.Backend](path string, backend B) (*transformer.Transformer[B], *File, error) {
	return serialization.LoadModel(path, backend)
}

// ReadFile reads and verifies a checkpoint without building a model.
func ReadFile(path string) (*File, error) {
	return serialization.ReadFile(path)
}

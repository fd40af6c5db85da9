// Package serialization saves and loads model checkpoints in the .born format.
//
//	Format structure:
//	  [4 bytes: magic "BORN"]
//	  [4 bytes: version (uint32 LE)]
//	  [4 bytes: flags (uint32 LE)]
//	  [8 bytes: header size (uint64 LE)]
//	  [header: JSON]
//	  [zero padding to a 64-byte boundary]
//	  [tensor data: little-endian, in header order]
//
// The SHA-256 of the data section is stored hex-encoded in the header
// metadata under "sha256" and checked on every read.
//
// Example:
//
//	err := serialization.SaveModel("model.born", model, &serialization.CheckpointMeta{Epoch: 3})
//	model, file, err := serialization.LoadModel("model.born", cpu.New())
package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 1
	HeaderAlignment = 64
	ModelType       = "seq2seq-transformer"

	fixedHeaderSize = 4 + 4 + 4 + 8
)

// Metadata keys written by this package.
const (
	MetaChecksum = "sha256"
	MetaConfig   = "config"
)

// Flags for the .born format.
const (
	FlagHasMetadata   uint32 = 1 << 2
	FlagHasCheckpoint uint32 = 1 << 3
)

// Header is the JSON header of a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	BornVersion   string            `json:"born_version"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	RunID         string            `json:"run_id"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records where in training a checkpoint was taken.
type CheckpointMeta struct {
	Epoch int     `json:"epoch"`
	Step  int64   `json:"step"`
	Loss  float64 `json:"loss"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Tensor returns the metadata of the named tensor.
func (h *Header) Tensor(name string) (TensorMeta, bool) {
	for _, meta := range h.Tensors {
		if meta.Name == name {
			return meta, true
		}
	}
	return TensorMeta{}, false
}

// DataSize returns the total size of the data section in bytes.
func (h *Header) DataSize() int64 {
	var size int64
	for _, meta := range h.Tensors {
		size += meta.Size
	}
	return size
}

func alignedDataOffset(headerSize int64) int64 {
	pos := int64(fixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}

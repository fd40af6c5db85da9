package transformer

import (
	"errors"
	"fmt"
)

// PadIndex is the token index reserved for padding in source and target sequences.
const PadIndex = 0

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid transformer config")

// Config holds the hyperparameters of an encoder-decoder Transformer.
type Config struct {
	SrcVocabSize int     `json:"src_vocab_size" yaml:"src_vocab_size"`
	TgtVocabSize int     `json:"tgt_vocab_size" yaml:"tgt_vocab_size"`
	DModel       int     `json:"d_model" yaml:"d_model"`
	NumHeads     int     `json:"num_heads" yaml:"num_heads"`
	NumLayers    int     `json:"num_layers" yaml:"num_layers"`
	DFF          int     `json:"d_ff" yaml:"d_ff"`
	MaxSeqLength int     `json:"max_seq_length" yaml:"max_seq_length"`
	Dropout      float32 `json:"dropout" yaml:"dropout"`

	// LearnedPositions selects a trainable positional table instead of the
	// fixed sinusoidal one.
	LearnedPositions bool `json:"learned_positions" yaml:"learned_positions"`

	// Seed drives parameter initialization and dropout.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the "Attention Is All You Need" base configuration
// for the given vocabulary sizes.
func DefaultConfig(srcVocabSize, tgtVocabSize int) Config {
	return Config{
		SrcVocabSize: srcVocabSize,
		TgtVocabSize: tgtVocabSize,
		DModel:       512,
		NumHeads:     8,
		NumLayers:    6,
		DFF:          2048,
		MaxSeqLength: 5000,
		Dropout:      0.1,
		Seed:         42,
	}
}

// Validate checks that the configuration can build a model.
func (c Config) Validate() error {
	switch {
	case c.SrcVocabSize < 2 || c.TgtVocabSize < 2:
		return fmt.Errorf("%w: vocabulary sizes must be at least 2 (pad + one token), got src=%d tgt=%d",
			ErrInvalidConfig, c.SrcVocabSize, c.TgtVocabSize)
	case c.DModel <= 0:
		return fmt.Errorf("%w: d_model must be positive, got %d", ErrInvalidConfig, c.DModel)
	case c.NumHeads <= 0:
		return fmt.Errorf("%w: num_heads must be positive, got %d", ErrInvalidConfig, c.NumHeads)
	case c.DModel%c.NumHeads != 0:
		return fmt.Errorf("%w: d_model %d not divisible by num_heads %d", ErrInvalidConfig, c.DModel, c.NumHeads)
	case c.NumLayers <= 0:
		return fmt.Errorf("%w: num_layers must be positive, got %d", ErrInvalidConfig, c.NumLayers)
	case c.DFF <= 0:
		return fmt.Errorf("%w: d_ff must be positive, got %d", ErrInvalidConfig, c.DFF)
	case c.MaxSeqLength <= 0:
		return fmt.Errorf("%w: max_seq_length must be positive, got %d", ErrInvalidConfig, c.MaxSeqLength)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1), got %g", ErrInvalidConfig, c.Dropout)
	}
	return nil
}

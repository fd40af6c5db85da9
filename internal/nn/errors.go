package nn

import "errors"

// Sentinel errors returned by layer constructors and forward passes.
var (
	// ErrHeadsDivisibility is returned when d_model is not divisible by the number of heads.
	ErrHeadsDivisibility = errors.New("d_model must be divisible by num_heads")

	// ErrSequenceTooLong is returned when a sequence exceeds the positional encoding table.
	ErrSequenceTooLong = errors.New("sequence length exceeds max_seq_length")

	// ErrIndexOutOfRange is returned when a token index is outside the vocabulary.
	ErrIndexOutOfRange = errors.New("token index out of range")

	// ErrInvalidShape is returned when an input tensor has an unexpected shape.
	ErrInvalidShape = errors.New("invalid input shape")
)

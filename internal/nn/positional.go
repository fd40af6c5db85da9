package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// PositionalEncoding adds a position-dependent vector to each token embedding.
type PositionalEncoding[B tensor.Backend] interface {
	Module[B]

	// Forward returns x + PE[:seq_len] for x of shape [batch, seq_len, d_model].
	// Returns ErrSequenceTooLong if seq_len exceeds MaxLen().
	Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)

	// MaxLen returns the number of positions in the table.
	MaxLen() int
}

// SinusoidalPositionalEncoding is the fixed encoding from "Attention Is All You Need".
//
//	PE[pos, 2i]   = sin(pos / 10000^(2i/d_model))
//	PE[pos, 2i+1] = cos(pos / 10000^(2i/d_model))
//
// The table is computed once at construction and never mutated.
// It has no trainable parameters.
type SinusoidalPositionalEncoding[B tensor.Backend] struct {
	table   []float32 // [maxLen * dModel], row-major
	maxLen  int
	dModel  int
	backend B
}

// NewSinusoidalPositionalEncoding precomputes the [maxLen, dModel] table.
func NewSinusoidalPositionalEncoding[B tensor.Backend](maxLen, dModel int, backend B) *SinusoidalPositionalEncoding[B] {
	table := make([]float32, maxLen*dModel)
	for pos := 0; pos < maxLen; pos++ {
		row := table[pos*dModel : (pos+1)*dModel]
		for j := 0; j < dModel; j += 2 {
			angle := float64(pos) / math.Pow(10000, float64(j)/float64(dModel))
			row[j] = float32(math.Sin(angle))
			if j+1 < dModel {
				row[j+1] = float32(math.Cos(angle))
			}
		}
	}
	return &SinusoidalPositionalEncoding[B]{
		table:   table,
		maxLen:  maxLen,
		dModel:  dModel,
		backend: backend,
	}
}

// Forward adds the first seq_len rows of the table to x, broadcast over batch.
func (pe *SinusoidalPositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	seqLen, err := checkPositions(x.Shape(), pe.maxLen, pe.dModel)
	if err != nil {
		return nil, err
	}

	rows := make([]float32, seqLen*pe.dModel)
	copy(rows, pe.table[:seqLen*pe.dModel])
	enc, err := tensor.FromSlice(rows, tensor.Shape{seqLen, pe.dModel}, pe.backend)
	if err != nil {
		return nil, err
	}
	return x.Add(enc), nil
}

// Encoding returns a copy of the vector for position pos.
// Panics if pos is outside [0, MaxLen()).
func (pe *SinusoidalPositionalEncoding[B]) Encoding(pos int) []float32 {
	if pos < 0 || pos >= pe.maxLen {
		panic(fmt.Sprintf("positional encoding: position %d out of range [0, %d)", pos, pe.maxLen))
	}
	out := make([]float32, pe.dModel)
	copy(out, pe.table[pos*pe.dModel:(pos+1)*pe.dModel])
	return out
}

// MaxLen returns the number of positions in the table.
func (pe *SinusoidalPositionalEncoding[B]) MaxLen() int {
	return pe.maxLen
}

// Parameters returns nil: the fixed encoding is not trainable.
func (pe *SinusoidalPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}

// NamedParameters returns an empty map.
func (pe *SinusoidalPositionalEncoding[B]) NamedParameters() map[string]*Parameter[B] {
	return map[string]*Parameter[B]{}
}

// LearnedPositionalEncoding is a trainable [maxLen, dModel] table,
// initialized from N(0, 0.02²).
type LearnedPositionalEncoding[B tensor.Backend] struct {
	Weight *Parameter[B]
	maxLen int
	dModel int
}

// NewLearnedPositionalEncoding creates a trainable positional table.
func NewLearnedPositionalEncoding[B tensor.Backend](maxLen, dModel int, rng *rand.Rand, backend B) *LearnedPositionalEncoding[B] {
	return &LearnedPositionalEncoding[B]{
		Weight: NewParameter("weight", Normal(tensor.Shape{maxLen, dModel}, 0.02, rng, backend)),
		maxLen: maxLen,
		dModel: dModel,
	}
}

// Forward adds the first seq_len rows of the table to x, broadcast over batch.
func (pe *LearnedPositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	seqLen, err := checkPositions(x.Shape(), pe.maxLen, pe.dModel)
	if err != nil {
		return nil, err
	}
	return x.Add(pe.Weight.Tensor().Narrow(0, 0, seqLen)), nil
}

// MaxLen returns the number of positions in the table.
func (pe *LearnedPositionalEncoding[B]) MaxLen() int {
	return pe.maxLen
}

// Parameters returns [weight].
func (pe *LearnedPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{pe.Weight}
}

// NamedParameters returns {"weight"}.
func (pe *LearnedPositionalEncoding[B]) NamedParameters() map[string]*Parameter[B] {
	return map[string]*Parameter[B]{"weight": pe.Weight}
}

func checkPositions(shape tensor.Shape, maxLen, dModel int) (int, error) {
	if len(shape) != 3 || shape[2] != dModel {
		return 0, fmt.Errorf("%w: positional encoding expects [batch, seq, %d], got %v", ErrInvalidShape, dModel, shape)
	}
	if shape[1] > maxLen {
		return 0, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, shape[1], maxLen)
	}
	return shape[1], nil
}

package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Embedding maps token indices to dense vectors.
//
// The weight table has shape [num_embeddings, embedding_dim] and is
// initialized from N(0, 1). Lookup of an index outside
// [0, num_embeddings) returns ErrIndexOutOfRange before any computation.
//
// Example:
//
//	embed := nn.NewEmbedding(1000, 512, rng, backend)
//	vectors, err := embed.Forward(tokens) // [batch, seq] -> [batch, seq, 512]
type Embedding[B tensor.Backend] struct {
	Weight        *Parameter[B]
	NumEmbeddings int
	EmbeddingDim  int
}

// NewEmbedding creates an embedding table.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, rng *rand.Rand, backend B) *Embedding[B] {
	weight := tensor.Randn[float32](tensor.Shape{numEmbeddings, embeddingDim}, rng, backend)
	return &Embedding[B]{
		Weight:        NewParameter("weight", weight),
		NumEmbeddings: numEmbeddings,
		EmbeddingDim:  embeddingDim,
	}
}

// Forward looks up the embedding of every index.
// Output shape is indices.Shape() + [embedding_dim].
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	for i, idx := range indices.Data() {
		if idx < 0 || int(idx) >= e.NumEmbeddings {
			return nil, fmt.Errorf("%w: index %d at position %d not in [0, %d)",
				ErrIndexOutOfRange, idx, i, e.NumEmbeddings)
		}
	}
	return e.Weight.Tensor().Embedding(indices), nil
}

// Parameters returns [weight].
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// NamedParameters returns {"weight"}.
func (e *Embedding[B]) NamedParameters() map[string]*Parameter[B] {
	return map[string]*Parameter[B]{"weight": e.Weight}
}

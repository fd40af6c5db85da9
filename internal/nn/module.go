// Package nn implements the neural network building blocks of the sequence model.
//
// This package provides:
//   - Parameter: trainable tensors addressed by name
//   - Module: the interface every parameterized component implements
//   - Mode: explicit train/eval switch threaded to every dropout site
//   - Linear, Embedding, LayerNorm, Dropout, FeedForward
//   - Mask: padding and causal attention masks as an explicit optional value
//   - ScaledDotProductAttention and MultiHeadAttention
//   - Sinusoidal and learned positional encodings
//   - EncoderLayer and DecoderLayer (post-norm)
//   - CrossEntropyLoss with an ignore index
package nn

import (
	"maps"
	"slices"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Module is the interface implemented by every parameterized component.
//
// Forward signatures differ between components (attention takes masks,
// embeddings take indices), so only parameter access is shared.
type Module[B tensor.Backend] interface {
	// Parameters returns all trainable parameters, including nested ones,
	// in a stable order.
	Parameters() []*Parameter[B]

	// NamedParameters returns the parameters keyed by dotted path
	// (for example "self_attn.w_q.weight").
	NamedParameters() map[string]*Parameter[B]
}

// Mode selects training or evaluation behavior.
type Mode int

// Supported modes.
const (
	// Eval disables dropout.
	Eval Mode = iota
	// Train enables dropout.
	Train
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Train {
		return "train"
	}
	return "eval"
}

// withPrefix copies src into dst with keys prefixed by prefix + ".".
func withPrefix[B tensor.Backend](dst map[string]*Parameter[B], prefix string, src map[string]*Parameter[B]) {
	for name, p := range src {
		dst[prefix+"."+name] = p
	}
}

// sortedParameters returns params ordered by name.
func sortedParameters[B tensor.Backend](named map[string]*Parameter[B]) []*Parameter[B] {
	keys := slices.Sorted(maps.Keys(named))
	out := make([]*Parameter[B], 0, len(keys))
	for _, k := range keys {
		out = append(out, named[k])
	}
	return out
}

// Package transformer implements the encoder-decoder Transformer sequence model.
//
// The model owns independent source and target embedding tables, one shared
// positional encoding, num_layers encoder and decoder blocks and the final
// projection to target-vocabulary logits. Masks are rebuilt from the token
// tensors on every forward call.
//
// Example:
//
//	cfg := transformer.DefaultConfig(srcVocab, tgtVocab)
//	model, err := transformer.New(cfg, cpu.New())
//	logits, err := model.Forward(src, tgt, nn.Eval) // [b, tgt_len, tgt_vocab]
package transformer

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Transformer is the encoder-decoder sequence model.
type Transformer[B tensor.Backend] struct {
	cfg     Config
	backend B
	rng     *rand.Rand

	SrcEmbed   *nn.Embedding[B]
	TgtEmbed   *nn.Embedding[B]
	Positional nn.PositionalEncoding[B]
	Encoders   []*nn.EncoderLayer[B]
	Decoders   []*nn.DecoderLayer[B]
	Output     *nn.Linear[B]

	dropout *nn.Dropout[B]
}

// New builds a model with freshly initialized parameters.
// Returns ErrInvalidConfig (and nn.ErrHeadsDivisibility for a heads mismatch)
// before allocating any parameter.
func New[B tensor.Backend](cfg Config, backend B) (*Transformer[B], error) {
	if cfg.NumHeads > 0 && cfg.DModel%cfg.NumHeads != 0 {
		return nil, fmt.Errorf("%w: %w: d_model=%d, num_heads=%d",
			ErrInvalidConfig, nn.ErrHeadsDivisibility, cfg.DModel, cfg.NumHeads)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := tensor.NewRNG(cfg.Seed)
	m := &Transformer[B]{
		cfg:      cfg,
		backend:  backend,
		rng:      rng,
		SrcEmbed: nn.NewEmbedding(cfg.SrcVocabSize, cfg.DModel, rng, backend),
		TgtEmbed: nn.NewEmbedding(cfg.TgtVocabSize, cfg.DModel, rng, backend),
		Encoders: make([]*nn.EncoderLayer[B], cfg.NumLayers),
		Decoders: make([]*nn.DecoderLayer[B], cfg.NumLayers),
		dropout:  nn.NewDropout[B](cfg.Dropout, rng),
	}

	if cfg.LearnedPositions {
		m.Positional = nn.NewLearnedPositionalEncoding(cfg.MaxSeqLength, cfg.DModel, rng, backend)
	} else {
		m.Positional = nn.NewSinusoidalPositionalEncoding(cfg.MaxSeqLength, cfg.DModel, backend)
	}

	for i := range cfg.NumLayers {
		enc, err := nn.NewEncoderLayer(cfg.DModel, cfg.NumHeads, cfg.DFF, cfg.Dropout, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("encoder layer %d: %w", i, err)
		}
		m.Encoders[i] = enc
	}
	for i := range cfg.NumLayers {
		dec, err := nn.NewDecoderLayer(cfg.DModel, cfg.NumHeads, cfg.DFF, cfg.Dropout, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("decoder layer %d: %w", i, err)
		}
		m.Decoders[i] = dec
	}
	m.Output = nn.NewLinear(cfg.DModel, cfg.TgtVocabSize, rng, backend)

	return m, nil
}

// Config returns the model configuration.
func (m *Transformer[B]) Config() Config {
	return m.cfg
}

// Backend returns the backend the parameters live on.
func (m *Transformer[B]) Backend() B {
	return m.backend
}

// CreateMask builds the source padding mask [b, 1, 1, src_len] and the
// target mask (padding AND causal) [b, 1, tgt_len, tgt_len].
func (m *Transformer[B]) CreateMask(src, tgt *tensor.Tensor[int32, B]) (srcMask, tgtMask nn.Mask[B]) {
	srcMask = nn.PaddingMask(src, PadIndex)
	tgtMask = nn.PaddingMask(tgt, PadIndex).And(nn.CausalMask(tgt.Shape()[1], m.backend))
	return srcMask, tgtMask
}

// Forward computes target-vocabulary logits [b, tgt_len, tgt_vocab] for
// src [b, src_len] and tgt [b, tgt_len]. No softmax is applied.
//
// Returns an error wrapping nn.ErrSequenceTooLong, nn.ErrIndexOutOfRange
// or nn.ErrInvalidShape without producing any partial result.
func (m *Transformer[B]) Forward(src, tgt *tensor.Tensor[int32, B], mode nn.Mode) (*tensor.Tensor[float32, B], error) {
	if err := m.checkInputs(src, tgt); err != nil {
		return nil, err
	}

	srcMask, tgtMask := m.CreateMask(src, tgt)

	enc, err := m.encode(src, srcMask, mode)
	if err != nil {
		return nil, err
	}
	dec, err := m.decode(tgt, enc, tgtMask, srcMask, mode)
	if err != nil {
		return nil, err
	}
	return m.Output.Forward(dec), nil
}

// Encode runs the encoder stack and returns enc_output [b, src_len, d_model].
func (m *Transformer[B]) Encode(src *tensor.Tensor[int32, B], mode nn.Mode) (*tensor.Tensor[float32, B], error) {
	if err := m.checkTokens("src", src, m.cfg.SrcVocabSize); err != nil {
		return nil, err
	}
	return m.encode(src, nn.PaddingMask(src, PadIndex), mode)
}

// Decode runs the decoder stack against a precomputed encoder output and
// returns logits [b, tgt_len, tgt_vocab]. src supplies the cross-attention
// padding mask and must be the sequence that produced enc.
func (m *Transformer[B]) Decode(
	tgt *tensor.Tensor[int32, B],
	enc *tensor.Tensor[float32, B],
	src *tensor.Tensor[int32, B],
	mode nn.Mode,
) (*tensor.Tensor[float32, B], error) {
	if err := m.checkInputs(src, tgt); err != nil {
		return nil, err
	}
	srcMask, tgtMask := m.CreateMask(src, tgt)
	dec, err := m.decode(tgt, enc, tgtMask, srcMask, mode)
	if err != nil {
		return nil, err
	}
	return m.Output.Forward(dec), nil
}

// DecoderWeights runs a forward pass and returns the attention weights of
// every decoder block, for inspection.
func (m *Transformer[B]) DecoderWeights(src, tgt *tensor.Tensor[int32, B]) ([]nn.DecoderWeights[B], error) {
	if err := m.checkInputs(src, tgt); err != nil {
		return nil, err
	}
	srcMask, tgtMask := m.CreateMask(src, tgt)
	enc, err := m.encode(src, srcMask, nn.Eval)
	if err != nil {
		return nil, err
	}

	x, err := m.embed(m.TgtEmbed, tgt, nn.Eval)
	if err != nil {
		return nil, err
	}
	weights := make([]nn.DecoderWeights[B], len(m.Decoders))
	for i, layer := range m.Decoders {
		x, weights[i] = layer.ForwardWithWeights(x, enc, tgtMask, srcMask, nn.Eval)
	}
	return weights, nil
}

func (m *Transformer[B]) encode(src *tensor.Tensor[int32, B], srcMask nn.Mask[B], mode nn.Mode) (*tensor.Tensor[float32, B], error) {
	x, err := m.embed(m.SrcEmbed, src, mode)
	if err != nil {
		return nil, fmt.Errorf("src: %w", err)
	}
	for _, layer := range m.Encoders {
		x = layer.Forward(x, srcMask, mode)
	}
	return x, nil
}

func (m *Transformer[B]) decode(
	tgt *tensor.Tensor[int32, B],
	enc *tensor.Tensor[float32, B],
	tgtMask, srcMask nn.Mask[B],
	mode nn.Mode,
) (*tensor.Tensor[float32, B], error) {
	x, err := m.embed(m.TgtEmbed, tgt, mode)
	if err != nil {
		return nil, fmt.Errorf("tgt: %w", err)
	}
	for _, layer := range m.Decoders {
		x = layer.Forward(x, enc, tgtMask, srcMask, mode)
	}
	return x, nil
}

// embed looks up tokens, adds positions and applies dropout.
// Embeddings are not scaled by sqrt(d_model).
func (m *Transformer[B]) embed(table *nn.Embedding[B], tokens *tensor.Tensor[int32, B], mode nn.Mode) (*tensor.Tensor[float32, B], error) {
	x, err := table.Forward(tokens)
	if err != nil {
		return nil, err
	}
	x, err = m.Positional.Forward(x)
	if err != nil {
		return nil, err
	}
	return m.dropout.Forward(x, mode), nil
}

// checkInputs validates shapes, lengths and indices of both sequences
// before any computation starts.
func (m *Transformer[B]) checkInputs(src, tgt *tensor.Tensor[int32, B]) error {
	if err := m.checkTokens("src", src, m.cfg.SrcVocabSize); err != nil {
		return err
	}
	if err := m.checkTokens("tgt", tgt, m.cfg.TgtVocabSize); err != nil {
		return err
	}
	if src.Shape()[0] != tgt.Shape()[0] {
		return fmt.Errorf("%w: batch mismatch src=%d tgt=%d", nn.ErrInvalidShape, src.Shape()[0], tgt.Shape()[0])
	}
	return nil
}

// ValidateTarget checks a full training target [b, t] before it is split
// into decoder input and expected output. Every id must lie in
// [0, TgtVocabSize); the length limit applies to the decoder input only.
func (m *Transformer[B]) ValidateTarget(tgt *tensor.Tensor[int32, B]) error {
	if len(tgt.Shape()) != 2 {
		return fmt.Errorf("tgt: %w: expected [batch, seq], got %v", nn.ErrInvalidShape, tgt.Shape())
	}
	return checkRange("tgt", tgt.Data(), m.cfg.TgtVocabSize)
}

func (m *Transformer[B]) checkTokens(name string, tokens *tensor.Tensor[int32, B], vocab int) error {
	shape := tokens.Shape()
	if len(shape) != 2 || shape[0] == 0 || shape[1] == 0 {
		return fmt.Errorf("%s: %w: expected non-empty [batch, seq], got %v", name, nn.ErrInvalidShape, shape)
	}
	if shape[1] > m.cfg.MaxSeqLength {
		return fmt.Errorf("%s: %w: %d > %d", name, nn.ErrSequenceTooLong, shape[1], m.cfg.MaxSeqLength)
	}
	return checkRange(name, tokens.Data(), vocab)
}

func checkRange(name string, ids []int32, vocab int) error {
	for i, idx := range ids {
		if idx < 0 || int(idx) >= vocab {
			return fmt.Errorf("%s: %w: index %d at position %d not in [0, %d)",
				name, nn.ErrIndexOutOfRange, idx, i, vocab)
		}
	}
	return nil
}

// Parameters returns every trainable parameter ordered by name.
func (m *Transformer[B]) Parameters() []*nn.Parameter[B] {
	named := m.NamedParameters()
	names := ParameterNames(named)
	out := make([]*nn.Parameter[B], len(names))
	for i, name := range names {
		out[i] = named[name]
	}
	return out
}

// NamedParameters returns the parameters keyed by stable dotted paths,
// e.g. "encoder.0.self_attn.w_q.weight". Checkpoints use these names.
func (m *Transformer[B]) NamedParameters() map[string]*nn.Parameter[B] {
	named := make(map[string]*nn.Parameter[B])
	add := func(prefix string, src map[string]*nn.Parameter[B]) {
		for name, p := range src {
			named[prefix+"."+name] = p
		}
	}

	add("src_embed", m.SrcEmbed.NamedParameters())
	add("tgt_embed", m.TgtEmbed.NamedParameters())
	add("positional", m.Positional.NamedParameters())
	for i, layer := range m.Encoders {
		add(fmt.Sprintf("encoder.%d", i), layer.NamedParameters())
	}
	for i, layer := range m.Decoders {
		add(fmt.Sprintf("decoder.%d", i), layer.NamedParameters())
	}
	add("output", m.Output.NamedParameters())
	return named
}

// ParameterNames returns the keys of named in sorted order.
func ParameterNames[B tensor.Backend](named map[string]*nn.Parameter[B]) []string {
	return slices.Sorted(maps.Keys(named))
}

// IsInputError reports whether err was caused by invalid caller input
// rather than a failure of the model itself.
func IsInputError(err error) bool {
	return errors.Is(err, nn.ErrIndexOutOfRange) ||
		errors.Is(err, nn.ErrSequenceTooLong) ||
		errors.Is(err, nn.ErrInvalidShape)
}

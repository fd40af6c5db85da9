// Package tokenizer turns text into the integer sequences consumed by the
// sequence model and back.
//
// Implementations:
//   - TikToken: OpenAI BPE encodings (cl100k_base, p50k_base, r50k_base)
//   - HuggingFace: tokenizer.json files through github.com/sugarme/tokenizer
//   - BPE: a small pure-Go merge-rule encoder for tokenizer.json vocabularies
//
// The model reserves index 0 for padding. None of the upstream vocabularies
// do, so every tokenizer is wrapped with WithPadding, which shifts ids up by
// one.
//
// Example:
//
//	base, err := tokenizer.NewTikToken("cl100k_base")
//	tok := tokenizer.WithPadding(base)
//	ids, err := tok.Encode("Hello, world!") // no id is 0
package tokenizer

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode converts text to token ids.
	Encode(text string) ([]int32, error)

	// Decode converts token ids back to text.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the number of distinct ids Encode can produce.
	VocabSize() int

	// BosToken returns the beginning-of-sequence id, or -1.
	BosToken() int32

	// EosToken returns the end-of-sequence id, or -1.
	EosToken() int32

	// IsSpecialToken reports whether id is a control token.
	IsSpecialToken(id int32) bool
}

// PadID is the id WithPadding reserves for padding.
const PadID int32 = 0

// Padded shifts an inner tokenizer's ids by one so that PadID is free.
type Padded struct {
	inner Tokenizer
}

// WithPadding wraps t so that its ids start at 1.
func WithPadding(t Tokenizer) *Padded {
	return &Padded{inner: t}
}

// Inner returns the wrapped tokenizer.
func (p *Padded) Inner() Tokenizer {
	return p.inner
}

// Encode encodes text with ids shifted by one.
func (p *Padded) Encode(text string) ([]int32, error) {
	ids, err := p.inner.Encode(text)
	if err != nil {
		return nil, err
	}
	for i := range ids {
		ids[i]++
	}
	return ids, nil
}

// Decode drops padding and decodes the remaining shifted ids.
func (p *Padded) Decode(tokens []int32) (string, error) {
	inner := make([]int32, 0, len(tokens))
	for _, id := range tokens {
		if id == PadID {
			continue
		}
		inner = append(inner, id-1)
	}
	return p.inner.Decode(inner)
}

// VocabSize includes the padding id.
func (p *Padded) VocabSize() int {
	return p.inner.VocabSize() + 1
}

// BosToken returns the shifted BOS id, or -1.
func (p *Padded) BosToken() int32 {
	return shift(p.inner.BosToken())
}

// EosToken returns the shifted EOS id, or -1.
func (p *Padded) EosToken() int32 {
	return shift(p.inner.EosToken())
}

// PadToken returns PadID.
func (p *Padded) PadToken() int32 {
	return PadID
}

// IsSpecialToken treats padding as special.
func (p *Padded) IsSpecialToken(id int32) bool {
	return id == PadID || p.inner.IsSpecialToken(id-1)
}

func shift(id int32) int32 {
	if id < 0 {
		return -1
	}
	return id + 1
}

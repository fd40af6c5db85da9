package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	encodingCL100kBase = "cl100k_base"
	encodingP50kBase   = "p50k_base"
	encodingR50kBase   = "r50k_base"
)

// TikToken wraps github.com/pkoukk/tiktoken-go.
//
// The encoding's BPE ranks are fetched and cached by tiktoken-go on first
// use (see TIKTOKEN_CACHE_DIR).
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding ("cl100k_base", "p50k_base", "r50k_base").
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to token ids. Special-token text is encoded as
// ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.Encode(text, nil, nil)
	out := make([]int32, len(tokens))
	for i, tok := range tokens {
		out[i] = int32(tok) //nolint:gosec // G115: vocab < 2^31
	}
	return out, nil
}

// Decode converts token ids back to text.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = int(tok)
	}
	return t.encoding.Decode(ids), nil
}

// VocabSize returns the number of ids including <|endoftext|>.
func (t *TikToken) VocabSize() int {
	switch t.name {
	case encodingCL100kBase:
		return 100277
	case encodingP50kBase, encodingR50kBase:
		return 50257
	default:
		return 100277
	}
}

// BosToken returns -1: tiktoken encodings have no BOS token.
func (t *TikToken) BosToken() int32 {
	return -1
}

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int32 {
	switch t.name {
	case encodingCL100kBase:
		return 100257
	case encodingP50kBase, encodingR50kBase:
		return 50256
	default:
		return -1
	}
}

// IsSpecialToken reports whether id is <|endoftext|> or a cl100k control token.
func (t *TikToken) IsSpecialToken(id int32) bool {
	if id == t.EosToken() {
		return true
	}
	return t.name == encodingCL100kBase && id >= 100256 && id <= 100276
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}

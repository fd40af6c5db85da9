package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HuggingFace loads a tokenizer.json through github.com/sugarme/tokenizer.
// Only inference is supported; no vocabulary is trained.
type HuggingFace struct {
	tok     *tk.Tokenizer
	vocab   map[string]int
	bos     int32
	eos     int32
	special map[int32]bool
}

var (
	bosCandidates = []string{"<bos>", "<s>", "[CLS]", "<|begin_of_text|>"}
	eosCandidates = []string{"<eos>", "</s>", "[SEP]", "<|endoftext|>", "<|end_of_text|>"}
)

// NewHuggingFace loads the tokenizer.json at path.
func NewHuggingFace(path string) (*HuggingFace, error) {
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer.json %q: %w", path, err)
	}

	vocab := t.GetVocab(true)
	h := &HuggingFace{
		tok:     t,
		vocab:   vocab,
		bos:     lookupFirst(vocab, bosCandidates),
		eos:     lookupFirst(vocab, eosCandidates),
		special: make(map[int32]bool),
	}
	for _, name := range append(append([]string{"<pad>", "<unk>", "[PAD]", "[UNK]"}, bosCandidates...), eosCandidates...) {
		if id, ok := vocab[name]; ok {
			h.special[int32(id)] = true //nolint:gosec // G115: vocab < 2^31
		}
	}
	return h, nil
}

func lookupFirst(vocab map[string]int, names []string) int32 {
	for _, name := range names {
		if id, ok := vocab[name]; ok {
			return int32(id) //nolint:gosec // G115: vocab < 2^31
		}
	}
	return -1
}

// Encode converts text to ids without adding post-processor special tokens.
func (h *HuggingFace) Encode(text string) ([]int32, error) {
	enc, err := h.tok.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out := make([]int32, len(enc.Ids))
	for i, id := range enc.Ids {
		out[i] = int32(id) //nolint:gosec // G115: vocab < 2^31
	}
	return out, nil
}

// Decode converts ids back to text, skipping special tokens.
func (h *HuggingFace) Decode(tokens []int32) (string, error) {
	ids := make([]int, len(tokens))
	for i, id := range tokens {
		ids[i] = int(id)
	}
	return h.tok.Decode(ids, true), nil
}

// VocabSize returns the vocabulary size including added tokens.
func (h *HuggingFace) VocabSize() int {
	return len(h.vocab)
}

// BosToken returns the BOS id, or -1.
func (h *HuggingFace) BosToken() int32 {
	return h.bos
}

// EosToken returns the EOS id, or -1.
func (h *HuggingFace) EosToken() int32 {
	return h.eos
}

// IsSpecialToken reports whether id is one of the well-known control tokens.
func (h *HuggingFace) IsSpecialToken(id int32) bool {
	return h.special[id]
}

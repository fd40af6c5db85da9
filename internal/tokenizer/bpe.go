package tokenizer

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// WordBoundary marks the start of a word, as in SentencePiece vocabularies.
const WordBoundary = "▁"

// Merge is one BPE merge rule: Left and Right are joined into Left+Right.
type Merge struct {
	Left  string
	Right string
}

// BPE is a small pure-Go Byte-Pair Encoding encoder.
//
// Text is split on whitespace; each word is prefixed with WordBoundary,
// split into runes and merged by rule rank (lower rank first). Pieces that
// are not in the vocabulary map to the unknown token, or are dropped when
// no unknown token is configured. It loads the "model.vocab" and
// "model.merges" sections of a tokenizer.json and is used where a
// dependency-free tokenizer is enough (tests, toy tasks).
type BPE struct {
	vocab   map[string]int32
	reverse map[int32]string
	ranks   map[Merge]int
	bos     int32
	eos     int32
	unk     int32
	special map[int32]bool
}

// NewBPE creates an encoder from a vocabulary and ordered merge rules.
func NewBPE(vocab map[string]int32, merges []Merge) *BPE {
	reverse := make(map[int32]string, len(vocab))
	for piece, id := range vocab {
		reverse[id] = piece
	}
	ranks := make(map[Merge]int, len(merges))
	for i, m := range merges {
		if _, dup := ranks[m]; !dup {
			ranks[m] = i
		}
	}
	return &BPE{
		vocab:   vocab,
		reverse: reverse,
		ranks:   ranks,
		bos:     -1,
		eos:     -1,
		unk:     -1,
		special: make(map[int32]bool),
	}
}

// SetSpecialTokens configures the BOS, EOS and UNK ids (-1 for none).
func (b *BPE) SetSpecialTokens(bos, eos, unk int32) {
	b.bos, b.eos, b.unk = bos, eos, unk
	for _, id := range []int32{bos, eos, unk} {
		if id >= 0 {
			b.special[id] = true
		}
	}
}

// Encode converts text to token ids.
func (b *BPE) Encode(text string) ([]int32, error) {
	var ids []int32
	for _, word := range strings.Fields(text) {
		pieces := b.merge(splitRunes(WordBoundary + word))
		for _, piece := range pieces {
			if id, ok := b.vocab[piece]; ok {
				ids = append(ids, id)
			} else if b.unk >= 0 {
				ids = append(ids, b.unk)
			}
		}
	}
	return ids, nil
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// merge applies the lowest-ranked merge until none applies.
func (b *BPE) merge(pieces []string) []string {
	for len(pieces) > 1 {
		best, bestRank := -1, len(b.ranks)
		for i := 0; i+1 < len(pieces); i++ {
			if rank, ok := b.ranks[Merge{pieces[i], pieces[i+1]}]; ok && rank < bestRank {
				best, bestRank = i, rank
			}
		}
		if best < 0 {
			break
		}
		pieces[best] += pieces[best+1]
		pieces = append(pieces[:best+1], pieces[best+2:]...)
	}
	return pieces
}

// Decode converts ids back to text. Special tokens are skipped.
func (b *BPE) Decode(tokens []int32) (string, error) {
	var sb strings.Builder
	for _, id := range tokens {
		if b.special[id] {
			continue
		}
		piece, ok := b.reverse[id]
		if !ok {
			return "", fmt.Errorf("decode: unknown token id %d", id)
		}
		sb.WriteString(piece)
	}
	return strings.TrimPrefix(strings.ReplaceAll(sb.String(), WordBoundary, " "), " "), nil
}

// VocabSize returns the vocabulary size.
func (b *BPE) VocabSize() int {
	return len(b.vocab)
}

// BosToken returns the BOS id, or -1.
func (b *BPE) BosToken() int32 {
	return b.bos
}

// EosToken returns the EOS id, or -1.
func (b *BPE) EosToken() int32 {
	return b.eos
}

// IsSpecialToken reports whether id is BOS, EOS or UNK.
func (b *BPE) IsSpecialToken(id int32) bool {
	return b.special[id]
}

type tokenizerJSON struct {
	Model struct {
		Vocab  map[string]int32 `json:"vocab"`
		Merges []string         `json:"merges"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int32  `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// LoadBPE reads the vocabulary and merges of a tokenizer.json file.
func LoadBPE(path string) (*BPE, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", err)
	}

	var file tokenizerJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}

	merges := make([]Merge, 0, len(file.Model.Merges))
	for _, line := range file.Model.Merges {
		if parts := strings.Fields(line); len(parts) == 2 {
			merges = append(merges, Merge{parts[0], parts[1]})
		}
	}

	vocab := file.Model.Vocab
	if vocab == nil {
		vocab = make(map[string]int32)
	}
	for _, tok := range file.AddedTokens {
		vocab[tok.Content] = tok.ID
	}

	bpe := NewBPE(vocab, merges)
	bos, eos, unk := int32(-1), int32(-1), int32(-1)
	for _, tok := range file.AddedTokens {
		if !tok.Special {
			continue
		}
		bpe.special[tok.ID] = true
		content := strings.ToLower(tok.Content)
		switch {
		case strings.Contains(content, "bos") || content == "<s>":
			bos = tok.ID
		case strings.Contains(content, "eos") || content == "</s>":
			eos = tok.ID
		case strings.Contains(content, "unk"):
			unk = tok.ID
		}
	}
	bpe.SetSpecialTokens(bos, eos, unk)
	return bpe, nil
}

// Package data builds padded training batches from source/target pairs.
//
// Pairs are read from JSON Lines files. Each line holds either token ids:
//
//	{"src": [5, 6, 7], "tgt": [1, 8, 9, 2]}
//
// or text, which is encoded with a tokenizer:
//
//	{"src_text": "hello", "tgt_text": "bonjour"}
//
// Text targets are wrapped in start and end tokens so that teacher forcing
// can shift them by one position.
package data

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/goccy/go-json"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// PadIndex fills sequences up to the batch length.
const PadIndex int32 = 0

// ErrEmptySequence is returned for a pair with an empty side.
var ErrEmptySequence = errors.New("empty sequence")

// Pair is one source/target training example.
type Pair struct {
	Src []int32 `json:"src"`
	Tgt []int32 `json:"tgt"`
}

// TextEncoder is the part of a tokenizer needed to encode text pairs.
type TextEncoder interface {
	Encode(text string) ([]int32, error)
	BosToken() int32
	EosToken() int32
}

type line struct {
	Src     []int32 `json:"src"`
	Tgt     []int32 `json:"tgt"`
	SrcText string  `json:"src_text"`
	TgtText string  `json:"tgt_text"`
}

// StartToken returns the id that opens target sequences: BOS, or EOS when
// the tokenizer has no BOS.
func StartToken(tok TextEncoder) int32 {
	if bos := tok.BosToken(); bos >= 0 {
		return bos
	}
	return tok.EosToken()
}

// EncodePair encodes a text pair. The target is framed as
// [start, tokens..., eos].
func EncodePair(tok TextEncoder, src, tgt string) (Pair, error) {
	srcIDs, err := tok.Encode(src)
	if err != nil {
		return Pair{}, fmt.Errorf("encode source: %w", err)
	}
	tgtIDs, err := tok.Encode(tgt)
	if err != nil {
		return Pair{}, fmt.Errorf("encode target: %w", err)
	}

	framed := make([]int32, 0, len(tgtIDs)+2)
	framed = append(framed, StartToken(tok))
	framed = append(framed, tgtIDs...)
	if eos := tok.EosToken(); eos >= 0 {
		framed = append(framed, eos)
	}
	return Pair{Src: srcIDs, Tgt: framed}, nil
}

// ReadJSONL parses pairs from r. tok may be nil when every line carries ids.
func ReadJSONL(r io.Reader, tok TextEncoder) ([]Pair, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pairs []Pair
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		pair := Pair{Src: l.Src, Tgt: l.Tgt}
		if l.SrcText != "" || l.TgtText != "" {
			if tok == nil {
				return nil, fmt.Errorf("line %d: text pair needs a tokenizer", lineNo)
			}
			var err error
			if pair, err = EncodePair(tok, l.SrcText, l.TgtText); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		if len(pair.Src) == 0 || len(pair.Tgt) == 0 {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrEmptySequence)
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}
	return pairs, nil
}

// LoadJSONL reads pairs from the file at path.
func LoadJSONL(path string, tok TextEncoder) ([]Pair, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pairs, err := ReadJSONL(f, tok)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

// Pad returns seq cut or padded with PadIndex to exactly length.
func Pad(seq []int32, length int) []int32 {
	out := make([]int32, length)
	copy(out, seq)
	return out
}

// Batch holds padded sequences of equal length.
type Batch struct {
	Src [][]int32
	Tgt [][]int32
}

// Size returns the number of pairs in the batch.
func (b Batch) Size() int {
	return len(b.Src)
}

// NewBatch pads the pairs to the longest source and target, truncated to
// maxLen (0 means no limit).
func NewBatch(pairs []Pair, maxLen int) Batch {
	srcLen, tgtLen := 0, 0
	for _, p := range pairs {
		srcLen = max(srcLen, len(p.Src))
		tgtLen = max(tgtLen, len(p.Tgt))
	}
	if maxLen > 0 {
		srcLen = min(srcLen, maxLen)
		tgtLen = min(tgtLen, maxLen)
	}

	b := Batch{
		Src: make([][]int32, len(pairs)),
		Tgt: make([][]int32, len(pairs)),
	}
	for i, p := range pairs {
		b.Src[i] = Pad(p.Src, srcLen)
		b.Tgt[i] = Pad(p.Tgt, tgtLen)
	}
	return b
}

// Batches groups pairs into batches of at most batchSize, bucketed by
// length so that each batch carries little padding. Pairs are ordered by
// source then target length (stable), then chunked. When rng is not nil the
// pairs are shuffled before sorting, so equal-length pairs mix across
// epochs, and the batch order is shuffled afterwards. pairs itself is not
// modified.
func Batches(pairs []Pair, batchSize, maxLen int, rng *rand.Rand) []Batch {
	if batchSize <= 0 {
		batchSize = len(pairs)
	}
	order := make([]int, len(pairs))
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(len(pairs[a].Src), len(pairs[b].Src)); c != 0 {
			return c
		}
		return cmp.Compare(len(pairs[a].Tgt), len(pairs[b].Tgt))
	})

	var out []Batch
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		group := make([]Pair, 0, end-start)
		for _, idx := range order[start:end] {
			group = append(group, pairs[idx])
		}
		out = append(out, NewBatch(group, maxLen))
	}
	if rng != nil {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// Tensors converts a batch into [batch, len] token tensors on backend.
func Tensors[B tensor.Backend](b Batch, backend B) (src, tgt *tensor.Tensor[int32, B], err error) {
	if src, err = Matrix(b.Src, backend); err != nil {
		return nil, nil, fmt.Errorf("src: %w", err)
	}
	if tgt, err = Matrix(b.Tgt, backend); err != nil {
		return nil, nil, fmt.Errorf("tgt: %w", err)
	}
	return src, tgt, nil
}

// ErrRagged is returned by Matrix when rows differ in length.
var ErrRagged = errors.New("rows have different lengths")

// Matrix packs equal-length rows into a [len(rows), len(rows[0])] tensor.
func Matrix[B tensor.Backend](rows [][]int32, backend B) (*tensor.Tensor[int32, B], error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptySequence
	}
	width := len(rows[0])
	flat := make([]int32, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrRagged, i, len(row), width)
		}
		flat = append(flat, row...)
	}
	return tensor.FromSlice(flat, tensor.Shape{len(rows), width}, backend)
}

package data

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// letters encodes each byte as byte-'a'+3; 1 is BOS and 2 is EOS.
type letters struct{ bos int32 }

func (l letters) Encode(text string) ([]int32, error) {
	ids := make([]int32, 0, len(text))
	for _, c := range []byte(text) {
		ids = append(ids, int32(c-'a')+3)
	}
	return ids, nil
}

func (l letters) BosToken() int32 { return l.bos }
func (l letters) EosToken() int32 { return 2 }

func TestPad(t *testing.T) {
	assert.Equal(t, []int32{4, 5, 0, 0}, Pad([]int32{4, 5}, 4))
	assert.Equal(t, []int32{4, 5}, Pad([]int32{4, 5, 6}, 2))
	assert.Equal(t, []int32{}, Pad(nil, 0))
}

func TestEncodePair(t *testing.T) {
	pair, err := EncodePair(letters{bos: 1}, "ab", "c")
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, pair.Src)
	assert.Equal(t, []int32{1, 5, 2}, pair.Tgt)

	// Without BOS, EOS opens the target.
	pair, err = EncodePair(letters{bos: -1}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 4, 2}, pair.Tgt)
}

func TestReadJSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"src": [5, 6, 7], "tgt": [1, 8, 2]}`,
		``,
		`{"src_text": "ba", "tgt_text": "c"}`,
	}, "\n")

	pairs, err := ReadJSONL(strings.NewReader(input), letters{bos: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Src: []int32{5, 6, 7}, Tgt: []int32{1, 8, 2}}, pairs[0])
	assert.Equal(t, Pair{Src: []int32{4, 3}, Tgt: []int32{1, 5, 2}}, pairs[1])
}

func TestReadJSONL_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		tok   TextEncoder
	}{
		{"malformed", `{"src": [1,`, nil},
		{"empty target", `{"src": [1], "tgt": []}`, nil},
		{"text without tokenizer", `{"src_text": "a", "tgt_text": "b"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSONL(strings.NewReader(tt.input), tt.tok)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 1")
		})
	}

	_, err := ReadJSONL(strings.NewReader(`{"src": [], "tgt": [1]}`), nil)
	assert.True(t, errors.Is(err, ErrEmptySequence))
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"src":[3,4],"tgt":[1,4,3,2]}`+"\n"), 0o600))

	pairs, err := LoadJSONL(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Src: []int32{3, 4}, Tgt: []int32{1, 4, 3, 2}}}, pairs)

	_, err = LoadJSONL(filepath.Join(t.TempDir(), "missing.jsonl"), nil)
	assert.Error(t, err)
}

func TestNewBatch(t *testing.T) {
	pairs := []Pair{
		{Src: []int32{3, 4, 5}, Tgt: []int32{1, 2}},
		{Src: []int32{6}, Tgt: []int32{1, 7, 8, 9, 2}},
	}

	b := NewBatch(pairs, 0)
	assert.Equal(t, 2, b.Size())
	assert.Equal(t, [][]int32{{3, 4, 5}, {6, 0, 0}}, b.Src)
	assert.Equal(t, [][]int32{{1, 2, 0, 0, 0}, {1, 7, 8, 9, 2}}, b.Tgt)

	truncated := NewBatch(pairs, 2)
	assert.Equal(t, [][]int32{{3, 4}, {6, 0}}, truncated.Src)
	assert.Equal(t, [][]int32{{1, 2}, {1, 7}}, truncated.Tgt)
}

func TestBatches(t *testing.T) {
	pairs := make([]Pair, 5)
	for i := range pairs {
		pairs[i] = Pair{Src: []int32{int32(i + 1)}, Tgt: []int32{1, int32(i + 3)}}
	}

	batches := Batches(pairs, 2, 0, nil)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{2, 2, 1}, []int{batches[0].Size(), batches[1].Size(), batches[2].Size()})
	assert.Equal(t, [][]int32{{1}, {2}}, batches[0].Src)

	shuffled := Batches(pairs, 2, 0, tensor.NewRNG(3))
	seen := map[int32]bool{}
	for _, b := range shuffled {
		for _, row := range b.Src {
			seen[row[0]] = true
		}
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, []int32{1}, pairs[0].Src)

	all := Batches(pairs, 0, 0, nil)
	require.Len(t, all, 1)
	assert.Equal(t, 5, all[0].Size())
}

func TestBatches_BucketsByLength(t *testing.T) {
	lengths := []int{5, 1, 3, 1, 5, 3, 3, 1, 5}
	pairs := make([]Pair, len(lengths))
	for i, n := range lengths {
		src := make([]int32, n)
		for j := range src {
			src[j] = int32(i + 3)
		}
		pairs[i] = Pair{Src: src, Tgt: []int32{1, 2}}
	}

	for _, rng := range []*rand.Rand{nil, tensor.NewRNG(7)} {
		batches := Batches(pairs, 3, 0, rng)
		require.Len(t, batches, 3)
		widths := map[int]bool{}
		for _, b := range batches {
			for _, row := range b.Src {
				assert.NotContains(t, row, int32(0), "bucketed batch should need no padding")
			}
			widths[len(b.Src[0])] = true
		}
		assert.Equal(t, map[int]bool{1: true, 3: true, 5: true}, widths)
	}

	ordered := Batches(pairs, 3, 0, nil)
	assert.Equal(t, [][]int32{{4}, {6}, {10}}, ordered[0].Src)
	assert.Len(t, ordered[2].Src[0], 5)
}

func TestTensors(t *testing.T) {
	backend := cpu.New()
	b := NewBatch([]Pair{
		{Src: []int32{3, 4}, Tgt: []int32{1, 2}},
		{Src: []int32{5}, Tgt: []int32{1, 6, 2}},
	}, 0)

	src, tgt, err := Tensors(b, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, src.Shape())
	assert.Equal(t, tensor.Shape{2, 3}, tgt.Shape())
	assert.Equal(t, []int32{3, 4, 5, 0}, src.Data())
	assert.Equal(t, []int32{1, 2, 0, 1, 6, 2}, tgt.Data())
}

func TestMatrix_Ragged(t *testing.T) {
	_, err := Matrix([][]int32{{1, 2}, {3}}, cpu.New())
	assert.True(t, errors.Is(err, ErrRagged))

	_, err = Matrix[*cpu.CPUBackend](nil, cpu.New())
	assert.True(t, errors.Is(err, ErrEmptySequence))
}

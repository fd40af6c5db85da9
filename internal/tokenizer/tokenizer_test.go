package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleBPE() *BPE {
	vocab := map[string]int32{
		"<unk>": 0,
		"<eos>": 1,
		"▁":     2,
		"h":     3,
		"e":     4,
		"l":     5,
		"o":     6,
		"▁h":    7,
		"▁he":   8,
		"ll":    9,
		"▁hell": 10,
		"w":     11,
		"r":     12,
		"d":     13,
		"▁w":    14,
	}
	merges := []Merge{
		{"▁", "h"},
		{"▁h", "e"},
		{"l", "l"},
		{"▁he", "ll"},
		{"▁", "w"},
	}
	b := NewBPE(vocab, merges)
	b.SetSpecialTokens(-1, 1, 0)
	return b
}

func TestBPE_EncodeDecode(t *testing.T) {
	b := exampleBPE()

	ids, err := b.Encode("hello world")
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 6, 14, 6, 12, 5, 13}, ids)

	text, err := b.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestBPE_UnknownPieces(t *testing.T) {
	b := exampleBPE()
	ids, err := b.Encode("hex")
	require.NoError(t, err)
	assert.Equal(t, []int32{8, 0}, ids)

	_, err = b.Decode([]int32{99})
	assert.Error(t, err)
}

func TestBPE_SpecialTokens(t *testing.T) {
	b := exampleBPE()
	assert.Equal(t, int32(1), b.EosToken())
	assert.Equal(t, int32(-1), b.BosToken())
	assert.True(t, b.IsSpecialToken(1))
	assert.False(t, b.IsSpecialToken(5))

	text, err := b.Decode([]int32{10, 6, 1})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestPadded_ShiftsIDs(t *testing.T) {
	p := WithPadding(exampleBPE())

	ids, err := p.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, []int32{11, 7}, ids)
	assert.NotContains(t, ids, PadID)

	text, err := p.Decode([]int32{11, 7, PadID, PadID})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.Equal(t, 16, p.VocabSize())
	assert.Equal(t, int32(2), p.EosToken())
	assert.Equal(t, int32(-1), p.BosToken())
	assert.Equal(t, PadID, p.PadToken())
	assert.True(t, p.IsSpecialToken(PadID))
	assert.True(t, p.IsSpecialToken(2))
}

func TestLoadBPE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	content := `{
  "model": {
    "vocab": {"▁": 0, "a": 1, "b": 2, "▁a": 3, "▁ab": 4},
    "merges": ["▁ a", "▁a b"]
  },
  "added_tokens": [
    {"id": 5, "content": "</s>", "special": true},
    {"id": 6, "content": "<unk>", "special": true}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tok, err := Load(KindBPE, "", path)
	require.NoError(t, err)

	ids, err := tok.Encode("ab a")
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 4}, ids)
	assert.Equal(t, int32(6), tok.EosToken())

	text, err := tok.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "ab a", text)
}

func writeHFTokenizer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	content := `{
  "version": "1.0",
  "truncation": null,
  "padding": null,
  "added_tokens": [
    {"id": 3, "content": "</s>", "single_word": false, "lstrip": false, "rstrip": false, "normalized": false, "special": true}
  ],
  "normalizer": null,
  "pre_tokenizer": {"type": "BertPreTokenizer"},
  "post_processor": null,
  "decoder": null,
  "model": {
    "type": "BPE",
    "dropout": null,
    "unk_token": null,
    "continuing_subword_prefix": null,
    "end_of_word_suffix": null,
    "fuse_unk": false,
    "vocab": {"a": 0, "b": 1, "c": 2, "</s>": 3},
    "merges": []
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHuggingFace_Roundtrip(t *testing.T) {
	tok, err := Load(KindHuggingFace, "", writeHFTokenizer(t))
	require.NoError(t, err)

	assert.Equal(t, 5, tok.VocabSize())
	assert.Equal(t, int32(4), tok.EosToken())
	assert.Equal(t, int32(-1), tok.BosToken())
	assert.True(t, tok.IsSpecialToken(tok.EosToken()))

	ids, err := tok.Encode("ab ca")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 1}, ids)
	assert.NotContains(t, ids, PadID)

	text, err := tok.Decode(append(ids, tok.EosToken(), PadID))
	require.NoError(t, err)
	assert.Equal(t, "abca", strings.ReplaceAll(text, " ", ""))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("sentencepiece", "", "")
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = Load(KindBPE, "", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(KindHuggingFace, "", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TikToken downloads its BPE ranks on first use.
func TestTikToken_Roundtrip(t *testing.T) {
	if os.Getenv("SEQ2SEQ_NETWORK_TESTS") == "" {
		t.Skip("set SEQ2SEQ_NETWORK_TESTS=1 to run tests that fetch tiktoken encodings")
	}

	tok, err := Load(KindTikToken, "cl100k_base", "")
	require.NoError(t, err)

	ids, err := tok.Encode("Hello, world!")
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.NotContains(t, ids, PadID)

	text, err := tok.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", text)
	assert.Equal(t, 100278, tok.VocabSize())
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/transformer"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.Model.DModel)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestDecode_OverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
model:
  src_vocab_size: 20
  tgt_vocab_size: 30
  d_model: 16
  num_heads: 4
  num_layers: 2
  d_ff: 32
  max_seq_length: 24
train:
  lr: 0.01
  seq_length: 12
server:
  address: "127.0.0.1:9000"
log:
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Model.SrcVocabSize)
	assert.Equal(t, 4, cfg.Model.NumHeads)
	assert.InDelta(t, 0.1, cfg.Model.Dropout, 1e-7, "unset keys keep defaults")
	assert.Equal(t, uint64(42), cfg.Model.Seed)
	assert.InDelta(t, 0.01, cfg.Train.LR, 1e-7)
	assert.Equal(t, 32, cfg.Train.BatchSize)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)

	tc := cfg.Train.Trainer()
	assert.InDelta(t, 0.01, tc.LR, 1e-7)
	assert.Equal(t, 10, tc.LogEvery)
}

func TestDecode_Empty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "model:\n  hidden: 3\n"},
		{"bad type", "train:\n  epochs: many\n"},
		{"heads", "model:\n  d_model: 10\n  num_heads: 3\n"},
		{"lr", "train:\n  lr: 0\n"},
		{"seq length", "train:\n  seq_length: 6000\n"},
		{"tokenizer kind", "tokenizer:\n  kind: sentencepiece\n"},
		{"tokenizer path", "tokenizer:\n  kind: huggingface\n"},
		{"log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Decode(strings.NewReader("model:\n  d_model: 10\n  num_heads: 3\n"))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, transformer.ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq2seq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("train:\n  epochs: 3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Train.Epochs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTokenizer_None(t *testing.T) {
	tok, err := Tokenizer{}.LoadTokenizer()
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestLog_Logger(t *testing.T) {
	var buf bytes.Buffer
	Log{Level: "warn", Format: "json"}.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	Log{Level: "debug", Format: "json"}.Logger(&buf).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

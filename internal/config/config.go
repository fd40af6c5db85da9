// Package config loads the YAML configuration shared by the seq2seq
// commands (see configs/seq2seq.yaml for an annotated example).
//
// Keys missing from the file keep their Default values. Command-line flags
// override the file only when set explicitly.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// File is the configuration file layout.
type File struct {
	Model     transformer.Config `yaml:"model"`
	Train     Train              `yaml:"train"`
	Server    Server             `yaml:"server"`
	Tokenizer Tokenizer          `yaml:"tokenizer"`
	Log       Log                `yaml:"log"`
}

// Train holds the training loop settings.
type Train struct {
	LR          float32 `yaml:"lr"`
	ClipNorm    float32 `yaml:"clip_norm"`
	WarmupSteps int     `yaml:"warmup_steps"`
	Epochs      int     `yaml:"epochs"`
	BatchSize   int     `yaml:"batch_size"`
	SeqLength   int     `yaml:"seq_length"` // pad/truncate length of every sequence
	LogEvery    int     `yaml:"log_every"`
	Shuffle     bool    `yaml:"shuffle"`
	Data        string  `yaml:"data"`       // JSONL pairs
	Checkpoint  string  `yaml:"checkpoint"` // output .born file
}

// Server holds the HTTP server settings.
type Server struct {
	Address string `yaml:"address"`
}

// Tokenizer selects the text tokenizer. An empty Kind means token ids only.
type Tokenizer struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Log selects the log level and format ("text" or "json").
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Model: transformer.DefaultConfig(1000, 1000),
		Train: Train{
			LR:         1e-4,
			ClipNorm:   1,
			Epochs:     10,
			BatchSize:  32,
			SeqLength:  64,
			LogEvery:   10,
			Shuffle:    true,
			Checkpoint: "model.born",
		},
		Server: Server{Address: ":8080"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return File{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode is Load for an arbitrary reader.
func Decode(r io.Reader) (File, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c File) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalid, err)
	}

	t := c.Train
	switch {
	case t.LR <= 0:
		return fmt.Errorf("%w: train.lr must be positive, got %g", ErrInvalid, t.LR)
	case t.ClipNorm < 0:
		return fmt.Errorf("%w: train.clip_norm must not be negative, got %g", ErrInvalid, t.ClipNorm)
	case t.WarmupSteps < 0:
		return fmt.Errorf("%w: train.warmup_steps must not be negative, got %d", ErrInvalid, t.WarmupSteps)
	case t.Epochs <= 0:
		return fmt.Errorf("%w: train.epochs must be positive, got %d", ErrInvalid, t.Epochs)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: train.batch_size must be positive, got %d", ErrInvalid, t.BatchSize)
	case t.SeqLength < 2 || t.SeqLength > c.Model.MaxSeqLength:
		return fmt.Errorf("%w: train.seq_length must be in [2, %d], got %d",
			ErrInvalid, c.Model.MaxSeqLength, t.SeqLength)
	}

	switch c.Tokenizer.Kind {
	case "", tokenizer.KindTikToken, tokenizer.KindHuggingFace, tokenizer.KindBPE:
	default:
		return fmt.Errorf("%w: tokenizer.kind %q", ErrInvalid, c.Tokenizer.Kind)
	}
	if (c.Tokenizer.Kind == tokenizer.KindHuggingFace || c.Tokenizer.Kind == tokenizer.KindBPE) && c.Tokenizer.Path == "" {
		return fmt.Errorf("%w: tokenizer.path is required for %s", ErrInvalid, c.Tokenizer.Kind)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Trainer returns the optimizer settings of the train section.
func (t Train) Trainer() train.Config {
	return train.Config{
		LR:          t.LR,
		ClipNorm:    t.ClipNorm,
		WarmupSteps: t.WarmupSteps,
		LogEvery:    t.LogEvery,
	}
}

// LoadTokenizer builds the configured tokenizer, or returns nil when none
// is configured.
func (t Tokenizer) LoadTokenizer() (*tokenizer.Padded, error) {
	if t.Kind == "" {
		return nil, nil //nolint:nilnil // no tokenizer configured
	}
	return tokenizer.Load(t.Kind, t.Name, t.Path)
}

// Logger builds a logger writing to w.
func (l Log) Logger(w io.Writer) logger.Logger {
	level := logger.ParseLevel(l.Level)
	if l.Format == "json" {
		return logger.JSON(w, level)
	}
	return logger.Text(w, level)
}

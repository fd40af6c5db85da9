package tokenizer

import (
	"errors"
	"fmt"
)

// Kinds accepted by Load.
const (
	KindTikToken    = "tiktoken"
	KindHuggingFace = "huggingface"
	KindBPE         = "bpe"
)

// ErrUnknownKind is returned by Load for an unsupported tokenizer kind.
var ErrUnknownKind = errors.New("unknown tokenizer kind")

// Load builds the tokenizer described by kind, wrapped with WithPadding.
//
//   - tiktoken: name is the encoding name (default cl100k_base)
//   - huggingface: path is a tokenizer.json loaded by sugarme/tokenizer
//   - bpe: path is a tokenizer.json loaded by the built-in BPE encoder
func Load(kind, name, path string) (*Padded, error) {
	var (
		base Tokenizer
		err  error
	)
	switch kind {
	case KindTikToken:
		if name == "" {
			name = encodingCL100kBase
		}
		base, err = NewTikToken(name)
	case KindHuggingFace:
		base, err = NewHuggingFace(path)
	case KindBPE:
		base, err = LoadBPE(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return WithPadding(base), nil
}

package generate

import (
	"context"
	"fmt"

	"github.com/born-ml/seq2seq/internal/data"
)

// Tokenizer is the text side of translation. Ids must already reserve 0 for
// padding (see tokenizer.WithPadding).
type Tokenizer interface {
	Encode(text string) ([]int32, error)
	Decode(tokens []int32) (string, error)
	BosToken() int32
	EosToken() int32
}

// Translate encodes text, decodes up to maxTokens target tokens and returns
// them as text. Targets are framed the same way data.EncodePair frames
// training pairs.
func (g *Generator[B]) Translate(ctx context.Context, tok Tokenizer, text string, maxTokens int) (string, Result, error) {
	src, err := tok.Encode(text)
	if err != nil {
		return "", Result{}, fmt.Errorf("encode: %w", err)
	}
	if maxLen := g.model.Config().MaxSeqLength; len(src) > maxLen {
		src = src[:maxLen]
	}

	res, err := g.Generate(ctx, src, Config{
		MaxTokens:  maxTokens,
		StartToken: data.StartToken(tok),
		EndToken:   tok.EosToken(),
	})
	if err != nil {
		return "", res, err
	}

	out, err := tok.Decode(res.Tokens)
	if err != nil {
		return "", res, fmt.Errorf("decode: %w", err)
	}
	return out, res, nil
}

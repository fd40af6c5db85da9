// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tokenizer turns text into the token ids consumed by the models.
//
// Every tokenizer returned by Load is wrapped so that id 0 stays free for
// padding.
//
// Example:
//
//	tok, err := tokenizer.Load(tokenizer.KindTikToken, "cl100k_base", "")
//	ids, err := tok.Encode("Hello, world!")
package tokenizer

import "github.com/born-ml/seq2seq/internal/tokenizer"

// Tokenizer is the interface implemented by every backend.
type Tokenizer = tokenizer.Tokenizer

// Padded shifts an inner tokenizer's ids by one to reserve PadID.
type Padded = tokenizer.Padded

// PadID is the padding id.
const PadID = tokenizer.PadID

// Tokenizer kinds.
const (
	KindTikToken    = tokenizer.KindTikToken
	KindHuggingFace = tokenizer.KindHuggingFace
	KindBPE         = tokenizer.KindBPE
)

// ErrUnknownKind is returned by Load for an unsupported kind.
var ErrUnknownKind = tokenizer.ErrUnknownKind

// Load builds a padded tokenizer. name selects the tiktoken encoding and
// path the tokenizer.json of the other kinds.
func Load(kind, name, path string) (*Padded, error) {
	return tokenizer.Load(kind, name, path)
}

// WithPadding wraps t so that its ids start at 1.
func WithPadding(t Tokenizer) *Padded {
	return tokenizer.WithPadding(t)
}

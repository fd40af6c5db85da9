package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/nn"
)

// ForwardRequest holds padded token id rows.
type ForwardRequest struct {
	Src [][]int32 `json:"src"`
	Tgt [][]int32 `json:"tgt"`
}

// ForwardResponse holds the argmax token of every target position.
type ForwardResponse struct {
	ID          string    `json:"id"`
	Shape       []int     `json:"shape"`
	Predictions [][]int32 `json:"predictions"`
}

// TranslateRequest asks for a text translation.
type TranslateRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens,omitempty"` // defaults to the model's max length
}

// TranslateResponse is a decoded translation.
type TranslateResponse struct {
	ID         string  `json:"id"`
	Tokens     []int32 `json:"tokens"`
	Text       string  `json:"text"`
	StopReason string  `json:"stop_reason"`
}

func (s *Server[B]) handleForward(c *echo.Context) error {
	id := newRequestID(c, "fwd")
	req, err := decodeJSON[ForwardRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Src) != len(req.Tgt) {
		return s.writeFailure(c, id, fmt.Errorf("%w: %d src rows, %d tgt rows", ErrInvalidRequest, len(req.Src), len(req.Tgt)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	backend := s.model.Backend()
	src, err := data.Matrix(req.Src, backend)
	if err != nil {
		return s.writeFailure(c, id, fmt.Errorf("src: %w", err))
	}
	tgt, err := data.Matrix(req.Tgt, backend)
	if err != nil {
		return s.writeFailure(c, id, fmt.Errorf("tgt: %w", err))
	}

	logits, err := s.model.Forward(src, tgt, nn.Eval)
	if err != nil {
		return s.writeFailure(c, id, err)
	}

	shape := logits.Shape()
	batch, length, vocab := shape[0], shape[1], shape[2]
	values := logits.Data()
	predictions := make([][]int32, batch)
	for b := range batch {
		row := make([]int32, length)
		for t := range length {
			row[t] = argmax(values[(b*length+t)*vocab : (b*length+t+1)*vocab])
		}
		predictions[b] = row
	}

	return c.JSON(http.StatusOK, ForwardResponse{
		ID:          id,
		Shape:       []int{batch, length, vocab},
		Predictions: predictions,
	})
}

func (s *Server[B]) handleTranslate(c *echo.Context) error {
	id := newRequestID(c, "tr")
	if s.tok == nil {
		return writeError(c, http.StatusNotImplemented, "not_implemented", "no tokenizer configured")
	}
	req, err := decodeJSON[TranslateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.MaxTokens < 0 {
		return writeBadRequest(c, "max_tokens must not be negative")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.model.Config().MaxSeqLength
	}
	text, res, err := generate.New(s.model, nil).Translate(c.Request().Context(), s.tok, req.Text, maxTokens)
	if err != nil {
		return s.writeFailure(c, id, err)
	}
	s.log.Debug("translated", "id", id, "tokens", len(res.Tokens), "reason", res.Reason)

	return c.JSON(http.StatusOK, TranslateResponse{
		ID:         id,
		Tokens:     res.Tokens,
		Text:       text,
		StopReason: string(res.Reason),
	})
}

func argmax(values []float32) int32 {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return int32(best) //nolint:gosec // G115: bounded by vocabulary size
}

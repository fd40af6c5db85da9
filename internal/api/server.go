// Package api serves a trained model over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /v1/config
//	POST /v1/forward    {"src": [[...]], "tgt": [[...]]}
//	POST /v1/translate  {"text": "...", "max_tokens": n}
//
// Requests run concurrently under a read lock; SetModel swaps the model
// under the write lock.
package api

import (
	"io"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// Server holds the model and the optional tokenizer.
type Server[B tensor.Backend] struct {
	mu    sync.RWMutex
	model *transformer.Transformer[B]
	tok   generate.Tokenizer
	log   logger.Logger
}

// NewServer creates a server. tok may be nil, which disables /v1/translate.
func NewServer[B tensor.Backend](model *transformer.Transformer[B], tok generate.Tokenizer, log logger.Logger) *Server[B] {
	if log == nil {
		log = logger.Nop()
	}
	return &Server[B]{model: model, tok: tok, log: log}
}

// Register mounts the routes on e. Every response gets an X-Request-Id;
// a client-supplied id is echoed back.
func (s *Server[B]) Register(e *echo.Echo) {
	e.Use(requestID)
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/config", s.handleConfig)
	e.POST("/v1/forward", s.handleForward)
	e.POST("/v1/translate", s.handleTranslate)
}

// SetModel replaces the served model once in-flight requests finish.
func (s *Server[B]) SetModel(model *transformer.Transformer[B]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Model returns the served model.
func (s *Server[B]) Model() *transformer.Transformer[B] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Server[B]) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server[B]) handleConfig(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.Model().Config())
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = "req-" + uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func newRequestID(c *echo.Context, prefix string) string {
	id := prefix + "-" + uuid.NewString()
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// ErrInvalidRequest marks malformed request bodies.
var ErrInvalidRequest = errors.New("invalid request")

// Error is the body of every non-2xx response.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": Error{Message: msg, Type: errType},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

// statusOf maps caller mistakes to 400 and everything else to 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, data.ErrRagged),
		errors.Is(err, data.ErrEmptySequence),
		errors.Is(err, generate.ErrEmptySource),
		transformer.IsInputError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server[B]) writeFailure(c *echo.Context, id string, err error) error {
	status := statusOf(err)
	if status == http.StatusBadRequest {
		return writeBadRequest(c, err.Error())
	}
	s.log.Error("request failed", "id", id, "path", c.Request().URL.Path, "error", err)
	return writeError(c, status, "server_error", err.Error())
}

package httpx

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// IsJSONArray reports whether body holds a JSON array at the top level.
func IsJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

type bulkBody[T any] struct {
	Message string              `json:"message"`
	Data    []T                 `json:"data"`
	Errors  []shared.EntryError `json:"errors,omitempty"`
}

// RespondBulk writes 201 when anything was created, the unexpected error
// when nothing was, and 400 when every entry was rejected.
func RespondBulk[T any](w http.ResponseWriter, logger *slog.Logger, result shared.BulkResult[T]) {
	switch {
	case len(result.Created) > 0:
		if result.Err != nil && logger != nil {
			logger.Error("bulk create partial failure", slog.Any("error", result.Err))
		}
		msg := "entries created"
		if len(result.Failed) > 0 {
			msg = "some entries were not created"
		}
		JSON(w, http.StatusCreated, bulkBody[T]{Message: msg, Data: result.Created, Errors: result.Failed})
	case result.Err != nil:
		RespondError(w, logger, result.Err)
	default:
		JSON(w, http.StatusBadRequest, bulkBody[T]{Message: "no entries were created", Data: []T{}, Errors: result.Failed})
	}
}

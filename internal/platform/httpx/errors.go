package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedBody), errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrDuplicateIdentity), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrEmailNotConfirmed), errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the JSON error body for err. Unexpected errors are
// logged and reported as a generic internal error.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{Message: shared.UserSafeMessage(err)}
	if errors.Is(err, ErrMalformedBody) {
		body.Message = ErrMalformedBody.Error()
	}
	var fieldErrs shared.ValidationErrors
	if errors.As(err, &fieldErrs) {
		body.Errors = fieldErrs
	}
	if status == http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", slog.Any("error", err))
	}
	JSON(w, status, body)
}

// Package httpx provides JSON response helpers for the REST API.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps request bodies read by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// MessageBody is a response carrying only a message.
type MessageBody struct {
	Message string `json:"message"`
}

// DataBody wraps a single resource.
type DataBody struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Message sends {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, MessageBody{Message: msg})
}

// ErrMalformedBody is returned by DecodeJSON for unreadable payloads.
var ErrMalformedBody = errors.New("malformed JSON body")

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	body, err := ReadBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// ReadBody reads at most maxBodyBytes of the request body.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrMalformedBody
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body too large", ErrMalformedBody)
	}
	return body, nil
}

// Package invenio provides a typed HTTP client for the InvenioRDM records
// API as deployed by Zenodo, with error classification for the deposition
// workflow.
package invenio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for response classification.
// Use errors.Is(err, invenio.ErrNotFound) to check.
var (
	ErrUnauthorized = errors.New("invenio: unauthorized")
	ErrNotFound     = errors.New("invenio: not found")
	ErrNetwork      = errors.New("invenio: network failure")
)

// UnauthorizedError is returned for HTTP 401 responses. It carries the
// full request that failed so the caller can capture it as a pending
// action and replay it verbatim after re-authorization.
type UnauthorizedError struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("invenio: %s %s: unauthorized", e.Method, e.URL)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// FieldError is a field-level validation message from the API.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-success response other than 401: remote validation or
// business errors the workflow surfaces verbatim to the user. For 404 it
// wraps ErrNotFound so stale-record recovery can match with errors.Is.
type APIError struct {
	StatusCode  int
	Message     string
	FieldErrors []FieldError
	Err         error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invenio: HTTP %d: %s", e.StatusCode, e.Message)

	for _, fe := range e.FieldErrors {
		fmt.Fprintf(&b, "; %s: %s", fe.Field, fe.Message)
	}

	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// apiErrorBody is the InvenioRDM error response shape. Field messages come
// either as a list of strings ("messages") or a single string ("message")
// depending on the endpoint.
type apiErrorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Field    string   `json:"field"`
		Messages []string `json:"messages"`
		Message  string   `json:"message"`
	} `json:"errors"`
}

// newAPIError builds an APIError from a response status and body.
// A body that cannot be parsed as JSON degrades to reporting it raw.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if status == http.StatusNotFound {
		apiErr.Err = ErrNotFound
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Message = parsed.Message

	for _, fe := range parsed.Errors {
		msg := fe.Message
		if msg == "" {
			msg = strings.Join(fe.Messages, ", ")
		}

		apiErr.FieldErrors = append(apiErr.FieldErrors, FieldError{
			Field:   fe.Field,
			Message: msg,
		})
	}

	return apiErr
}

package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call by how the web client reacts to it.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
	KindMalformed    Kind = "malformed"
	KindRejected     Kind = "rejected"
)

const (
	MsgNetwork     = "Unable to reach PhotoFlow. Check your connection and try again."
	MsgUnavailable = "Service temporarily unavailable. Please try again shortly."
)

// ErrMalformedResponse marks a body that violates the success/data/error envelope.
var ErrMalformedResponse = errors.New("malformed api response")

// APIError is a failed call to the PhotoFlow REST API. Code carries the
// envelope's "error" field and Message its "message" field.
type APIError struct {
	Kind       Kind   `json:"kind"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	text := e.Code
	if text == "" {
		text = e.Message
	} else if e.Message != "" && e.Message != e.Code {
		text = e.Code + ": " + e.Message
	}
	if text == "" && e.Err != nil {
		text = e.Err.Error()
	}
	if text == "" {
		text = string(e.Kind)
	}

	if e.HTTPStatus > 0 {
		return fmt.Sprintf("api %d: %s", e.HTTPStatus, text)
	}

	return "api: " + text
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{
		Kind:       KindForStatus(status),
		Code:       code,
		Message:    message,
		Details:    details,
		HTTPStatus: status,
	}
}

// Network wraps a transport failure (timeout, refused connection, DNS).
func Network(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: MsgNetwork, Err: err}
}

// Malformed wraps a body that could not be read as an envelope.
func Malformed(status int, cause error) *APIError {
	err := ErrMalformedResponse
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrMalformedResponse, cause)
	}

	return &APIError{Kind: KindMalformed, HTTPStatus: status, Message: MsgUnavailable, Err: err}
}

// KindForStatus maps an HTTP status to the client error taxonomy.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return KindValidation
	case status >= 500:
		return KindServer
	case status > 0:
		return KindRejected
	default:
		return KindUnknown
	}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	return KindUnknown
}

func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus
	}

	return 0
}

func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsTransient reports failures that say nothing about the session itself.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer, KindMalformed, KindRateLimited:
		return true
	default:
		return false
	}
}

// UserMessage picks the text shown to a user: the server's "error" field,
// then its "message" field, then fallback. Network and server failures always
// use the generic copy.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if KindOf(err) == KindNetwork {
			return MsgNetwork
		}
		return fallback
	}

	switch apiErr.Kind {
	case KindNetwork:
		return MsgNetwork
	case KindServer, KindMalformed:
		return MsgUnavailable
	}

	if apiErr.Code != "" {
		return apiErr.Code
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}

	return fallback
}

// DetailMessage is UserMessage with the "message" field preferred. Validation
// failures put the field-level reason there.
func DetailMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindValidation && apiErr.Message != "" {
		return apiErr.Message
	}

	return UserMessage(err, fallback)
}

package downstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrTimeout      = errors.New("downstream_timeout")
	ErrUnavailable  = errors.New("downstream_unavailable")
	ErrNotFound     = errors.New("resource_not_found")
	ErrUnauthorized = errors.New("unauthorized")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx answer from the remote API. Message is the
// server-supplied text, empty when the body carried none.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is lets callers test a StatusError against the sentinels by status class.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// errorBody covers the shapes the remote API answers with:
// {"message": "..."}, {"error": "..."} and {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func decodeError(resp *http.Response) *StatusError {
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Code:       codeForStatus(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return se
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return se
	}
	se.Message = strings.TrimSpace(body.Message)

	if len(body.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var flat string
		switch {
		case json.Unmarshal(body.Error, &nested) == nil:
			if nested.Code != "" {
				se.Code = nested.Code
			}
			if se.Message == "" {
				se.Message = strings.TrimSpace(nested.Message)
			}
		case json.Unmarshal(body.Error, &flat) == nil:
			if se.Message == "" {
				se.Message = strings.TrimSpace(flat)
			}
		}
	}
	return se
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "resource_not_found"
	case status >= 500:
		return "upstream_error"
	default:
		return "downstream_error"
	}
}

// MessageOr returns the server-supplied message carried by err, or fallback
// when there is none (transport failures included).
func MessageOr(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

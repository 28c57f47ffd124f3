package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrAuthenticationFailed is returned by SignIn when the credentials are
// rejected.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Kind classifies a StatusError.
type Kind int

const (
	KindHTTP Kind = iota
	KindClient
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServer
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client error"
	case KindBadRequest:
		return "bad request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server error"
	default:
		return "http error"
	}
}

// StatusError is an HTTP response with an error status. Body holds the
// decoded JSON body when there was one.
type StatusError struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

// NewStatusError builds the error for a response, decoding a JSON object
// body when possible.
func NewStatusError(status int, raw []byte) *StatusError {
	e := &StatusError{Status: status, Raw: raw}
	var body map[string]any
	if len(raw) > 0 && sonic.Unmarshal(raw, &body) == nil {
		e.Body = body
	}
	return e
}

// Kind classifies the status: 400-499 are client errors with a few named
// kinds, 500-599 server errors, anything else a plain HTTP error.
func (e *StatusError) Kind() Kind {
	switch {
	case e.Status >= 400 && e.Status <= 499:
		switch e.Status {
		case http.StatusBadRequest:
			return KindBadRequest
		case http.StatusUnauthorized:
			return KindUnauthorized
		case http.StatusForbidden:
			return KindForbidden
		case http.StatusNotFound:
			return KindNotFound
		default:
			return KindClient
		}
	case e.Status >= 500 && e.Status <= 599:
		return KindServer
	default:
		return KindHTTP
	}
}

// IsClientError reports whether the status is in the 4xx range.
func (e *StatusError) IsClientError() bool {
	switch e.Kind() {
	case KindClient, KindBadRequest, KindUnauthorized, KindForbidden, KindNotFound:
		return true
	}
	return false
}

// Detail is the human readable explanation the server sent: the "detail"
// field of a JSON body, or a plain text body.
func (e *StatusError) Detail() string {
	if e.Body != nil {
		if detail, ok := e.Body["detail"].(string); ok {
			return detail
		}
		return ""
	}
	return strings.TrimSpace(string(e.Raw))
}

// FieldErrors returns the validation messages for one field of a 400
// response, e.g. {"name": ["This field is required."]}.
func (e *StatusError) FieldErrors(field string) []string {
	values, ok := e.Body[field].([]any)
	if !ok {
		return nil
	}
	messages := make([]string, 0, len(values))
	for _, v := range values {
		messages = append(messages, fmt.Sprint(v))
	}
	return messages
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, e.Kind())
	if detail := e.Detail(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// StatusKind returns the kind of err if it is a StatusError.
func StatusKind(err error) (Kind, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Kind(), true
	}
	return 0, false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	kind, ok := StatusKind(err)
	return ok && kind == KindNotFound
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	kind, ok := StatusKind(err)
	return ok && kind == KindUnauthorized
}

// IsBadRequest reports whether err is a 400 response.
func IsBadRequest(err error) bool {
	kind, ok := StatusKind(err)
	return ok && kind == KindBadRequest
}

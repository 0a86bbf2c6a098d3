package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// Kind classifies a relay failure. Clients see every kind as the same
// generic failure; kinds exist for logs and tests.
type Kind string

const (
	// KindInput is a malformed client request.
	KindInput Kind = "input"

	// KindUpstream is a non-success status from the upstream.
	KindUpstream Kind = "upstream"

	// KindTransport is a network failure or timeout reaching the upstream.
	KindTransport Kind = "transport"

	// KindResponseFormat is a success response missing the expected fields.
	KindResponseFormat Kind = "response_format"
)

// ErrEmptyConversation is returned when a call carries no turns.
var ErrEmptyConversation = errors.New("messages must contain at least one turn")

// Error is a classified relay failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InputError classifies err as a malformed client request.
func InputError(err error) error {
	return &Error{Kind: KindInput, Err: err}
}

// KindOf returns the kind of a relay error, or the empty Kind if err is not
// (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify maps an upstream client error to its kind.
func classify(err error) error {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	// Status errors are checked first: a RequestError may wrap a decode
	// error of the upstream's error body.
	switch {
	case errors.As(err, &apiErr), errors.As(err, &reqErr):
		return &Error{Kind: KindUpstream, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &Error{Kind: KindResponseFormat, Err: err}
	default:
		return &Error{Kind: KindTransport, Err: err}
	}
}

// upstreamStatus extracts the upstream HTTP status from err, or 0.
func upstreamStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

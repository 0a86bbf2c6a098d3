package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var (
	errNoChoices = errors.New("no choices in upstream response")
	errNoMessage = errors.New("upstream choice has no message")
	errNoContent = errors.New("upstream message has no content")
)

type captureKey struct{}

// captureTransport copies successful response bodies into the buffer carried
// by the request context, if any. The completion client decodes absent
// fields to zero values; the copy lets Handle tell them apart.
type captureTransport struct {
	base http.RoundTripper
}

func (t captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if buf, ok := req.Context().Value(captureKey{}).(*bytes.Buffer); ok && resp.StatusCode < http.StatusMultipleChoices {
		resp.Body = teeBody{Reader: io.TeeReader(resp.Body, buf), Closer: resp.Body}
	}

	return resp, nil
}

type teeBody struct {
	io.Reader
	io.Closer
}

func withCapture(ctx context.Context) (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return context.WithValue(ctx, captureKey{}, buf), buf
}

// checkFirstChoice reports a response format error unless the first choice
// in body carries a message with a content field. An empty content string is
// a valid reply.
func checkFirstChoice(body []byte) error {
	var shape struct {
		Choices []struct {
			Message *struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&shape); err != nil {
		return &Error{Kind: KindResponseFormat, Err: err}
	}

	switch {
	case len(shape.Choices) == 0:
		return &Error{Kind: KindResponseFormat, Err: errNoChoices}
	case shape.Choices[0].Message == nil:
		return &Error{Kind: KindResponseFormat, Err: errNoMessage}
	case shape.Choices[0].Message.Content == nil:
		return &Error{Kind: KindResponseFormat, Err: errNoContent}
	}

	return nil
}

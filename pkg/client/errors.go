package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when the caller cancelled the fetch before or while
// it was in flight. It is not a failure and is never shown to users.
var ErrCancelled = errors.New("fetch cancelled")

// maxBodyExcerpt bounds the response body kept on HTTP status errors.
const maxBodyExcerpt = 512

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindInvalidRequest means the request could not be built. Never retried.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindHTTPStatus means the server answered with a non-2xx status.
	KindHTTPStatus ErrorKind = "http_status"

	// KindDecoding means the payload did not match the expected shape.
	KindDecoding ErrorKind = "decoding"

	// KindTransport means the request failed at the connection level.
	KindTransport ErrorKind = "transport"

	// KindCancelled is reported by KindOf for ErrCancelled.
	KindCancelled ErrorKind = "cancelled"
)

// FetchError describes a failed fetch.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

// Error renders a message suitable for showing to users.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindInvalidRequest:
		return fmt.Sprintf("Invalid request: %v", e.Err)
	case KindHTTPStatus:
		if e.Body != "" {
			return fmt.Sprintf("Server returned HTTP %d • %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("Server returned HTTP %d", e.StatusCode)
	case KindDecoding:
		return fmt.Sprintf("Failed to decode: %v", e.Err)
	case KindTransport:
		return fmt.Sprintf("Network error: %v", e.Err)
	default:
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error returned by the client.
// Errors that did not come from the client are reported as KindTransport.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransport
}

func invalidRequest(err error) *FetchError {
	return &FetchError{Kind: KindInvalidRequest, Err: err}
}

func httpStatus(code int, body []byte) *FetchError {
	excerpt := string(body)
	if len(excerpt) > maxBodyExcerpt {
		excerpt = string(truncate(body, maxBodyExcerpt)) + "…"
	}
	excerpt = strings.ToValidUTF8(excerpt, "\uFFFD")
	return &FetchError{
		Kind:       KindHTTPStatus,
		StatusCode: code,
		Body:       excerpt,
		Err:        fmt.Errorf("unexpected status %d", code),
	}
}

func decoding(err error) *FetchError {
	return &FetchError{Kind: KindDecoding, Err: err}
}

func transport(err error) *FetchError {
	return &FetchError{Kind: KindTransport, Err: err}
}

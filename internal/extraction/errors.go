package extraction

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrRateLimited means every attempt was answered with 429.
	ErrRateLimited = errors.New("rate limited, retries exhausted")
	// ErrPayloadTooLarge is a 413; the caller may shrink the payload and try again.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrMalformedOutput means the reply held no parsable JSON object.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrStatus matches any other non-2xx answer.
	ErrStatus = errors.New("model endpoint error")
)

// StatusError is a fatal non-2xx answer from the model endpoint.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model endpoint status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() []error { return []error{ErrStatus, e.Err} }

// httpStatus digs the HTTP status out of a go-openai error. Transport
// failures carry none and report 0.
func httpStatus(err error) int {
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

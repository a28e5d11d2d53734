package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// AdapterError carries the provider and HTTP status of a failed completion.
type AdapterError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	switch {
	case e == nil:
		return "adapter error"
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: adapter error (status=%d)", e.Provider, e.Status)
	}
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether a failed call may succeed if retried: deadlines, network
// timeouts, rate limiting and server-side errors.
func IsTransient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Temporary || transientStatus(adapterErr.Status)
	}
	return false
}

func transientStatus(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

// wrapProviderError records the HTTP status reported by each SDK's error type.
func wrapProviderError(provider string, err error) error {
	var (
		antErr   *anthropic.Error
		oaiErr   *openai.Error
		genaiErr genai.APIError
	)
	status := 0
	switch {
	case errors.As(err, &antErr):
		status = antErr.StatusCode
	case errors.As(err, &oaiErr):
		status = oaiErr.StatusCode
	case errors.As(err, &genaiErr):
		status = genaiErr.Code
	}
	return &AdapterError{
		Provider: provider,
		Status:   status,
		Err:      fmt.Errorf("%s API error: %w", provider, err),
	}
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories for Ollama operations.
var (
	// ErrProviderUnreachable indicates the Ollama server could not be reached.
	ErrProviderUnreachable = errors.New("ollama unreachable")

	// ErrModelUnavailable indicates the requested model is not pulled or not found.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrProviderOverloaded indicates the server refused the request due to load.
	ErrProviderOverloaded = errors.New("ollama overloaded")

	// ErrProviderError indicates a general provider failure.
	ErrProviderError = errors.New("ollama error")
)

// classifyStatus maps an HTTP status code from Ollama to a sentinel error.
func classifyStatus(status int, path string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s returned 404", ErrModelUnavailable, path)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s returned %d", ErrProviderOverloaded, path, status)
	default:
		return fmt.Errorf("%w: %s returned %d", ErrProviderError, path, status)
	}
}

// IsRetryable reports whether a request that produced err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnreachable) || errors.Is(err, ErrProviderOverloaded)
}

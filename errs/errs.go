// Package errs holds the error kinds shared by loaders, providers and services.
// Call sites wrap these with %w so callers can match them with errors.Is.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInputNotFound       = errors.New("input not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrEmptyDocument       = errors.New("empty document")
)

// FromStatus classifies a provider failure by its HTTP status code.
// A zero code means the request never got a response.
func FromStatus(code int, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case code == 0:
		return Provider(err)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	case code >= 400:
		return fmt.Errorf("%w: %w", ErrProviderRejected, err)
	default:
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
}

// Provider classifies a failure that carries no status code: transport
// errors and timeouts. Already classified and canceled errors pass through.
func Provider(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrProviderRejected) || errors.Is(err, ErrProviderUnavailable) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

// Transient reports whether a retry might succeed.
func Transient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) && !errors.Is(err, context.Canceled)
}

package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrMalformedResponse = errors.New("malformed response body")

// FetchError describes a failed upstream request. Status is zero when no response was received.
type FetchError struct {
	Module string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: %s: status %d: %v", e.Module, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Module, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) retryable() bool {
	if errors.Is(e.Err, ErrMalformedResponse) {
		return false
	}
	return e.Status == 0 || e.Status >= http.StatusInternalServerError || e.Status == http.StatusUnauthorized ||
		e.Status == http.StatusTooManyRequests
}

// IsFetchError reports whether err came from an upstream request.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Degrade logs err and returns fallback in its place, so that a failing upstream only empties
// the smallest piece of output depending on it.
func Degrade[T any](ctx context.Context, value T, err error, fallback T, what string) T {
	if err == nil {
		return value
	}
	log.Ctx(ctx).Error().Err(err).Str("resource", what).Msg("upstream request failed, continuing without it")
	return fallback
}

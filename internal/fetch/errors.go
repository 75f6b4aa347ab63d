package fetch

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when the endpoint rejects the bearer token.
	ErrUnauthorized = errors.New("remote endpoint rejected credentials")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrInvalidConfig is returned by NewPager for unusable settings.
	ErrInvalidConfig = errors.New("invalid fetch configuration")
)

// RateLimitError reports a 429 response. The queue has already been blocked
// for RetryAfter when the error is returned.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// CursorError records the cursor a page failed at. Pass Cursor back as the
// start cursor to resume from that page.
type CursorError struct {
	Cursor string
	Err    error
}

func (e *CursorError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("failed fetching first page: %v", e.Err)
	}
	return fmt.Sprintf("failed fetching cursor %s: %v", e.Cursor, e.Err)
}

func (e *CursorError) Unwrap() error {
	return e.Err
}

package riot

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrRatelimitMismatch marks a disagreement between the configured app
	// quotas and the ones the server advertises. Proceeding would either
	// waste quota or get the key blacklisted, so this is fatal.
	ErrRatelimitMismatch = errors.New("riot: configured rate limits do not match server headers")

	// ErrNotFound is the "absence is an answer" form of a 404: no active
	// match, no matches in a matchlist slice.
	ErrNotFound = errors.New("riot: not found")
)

// APIError is any non-2xx vendor response.
type APIError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("riot: HTTP %d from %s", e.StatusCode, e.URL)
}

// RateLimitType returns the X-Rate-Limit-Type header of a 429, empty when
// the underlying service never set one.
func (e *APIError) RateLimitType() string {
	return e.Header.Get("X-Rate-Limit-Type")
}

// RetryAfter returns the server-advertised wait, or fallback when absent or
// unparseable.
func (e *APIError) RetryAfter(fallback time.Duration) time.Duration {
	raw := e.Header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsFatalRateLimit reports whether err is a 429 of type application or
// method: both mean our own ledger admitted too much, which is a
// configuration problem no amount of retrying fixes.
func IsFatalRateLimit(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return false
	}
	switch apiErr.RateLimitType() {
	case "application", "method":
		return true
	}
	return false
}

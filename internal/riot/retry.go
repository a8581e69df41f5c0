package riot

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// NotFoundMode selects what a 404 means for one call site.
type NotFoundMode int

const (
	// NotFoundFatal propagates the 404 as-is.
	NotFoundFatal NotFoundMode = iota
	// NotFoundInProgress treats a 404 as "not finished yet": wait out
	// InProgressWait and ask again, without consuming a try.
	NotFoundInProgress
	// NotFoundEmpty collapses a 404 into ErrNotFound immediately.
	NotFoundEmpty
)

// RetryPolicy shapes the retry envelope around one vendor call.
type RetryPolicy struct {
	// Retries is the number of additional tries after the first one.
	Retries int
	// NotFound selects the 404 interpretation.
	NotFound NotFoundMode
	// InProgressWait applies to NotFoundInProgress 404s. Uncounted.
	InProgressWait time.Duration
	// ServiceWait applies to service-side 429s without a usable
	// Retry-After, and to 429s missing X-Rate-Limit-Type. Uncounted.
	ServiceWait time.Duration
	// TransientWait applies to every other failure. Counted.
	TransientWait time.Duration
	// Sleep is replaceable in tests.
	Sleep func(context.Context, time.Duration) error
}

// DefaultRetryPolicy allows two extra tries with the standard waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:        2,
		InProgressWait: 5 * time.Minute,
		ServiceWait:    5 * time.Second,
		TransientWait:  2 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.InProgressWait <= 0 {
		p.InProgressWait = 5 * time.Minute
	}
	if p.ServiceWait <= 0 {
		p.ServiceWait = 5 * time.Second
	}
	if p.TransientWait <= 0 {
		p.TransientWait = 2 * time.Second
	}
	if p.Sleep == nil {
		p.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	return p
}

// Retry runs fn under the policy. Application and method 429s, rate-limit
// mismatches and fatal 404s return at once; in-progress 404s and service
// 429s wait without consuming a try; anything else consumes a try and waits
// TransientWait before the next one.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T
	triesLeft := 1 + p.Retries

	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrRatelimitMismatch) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusNotFound:
				switch p.NotFound {
				case NotFoundEmpty:
					return zero, ErrNotFound
				case NotFoundInProgress:
					if serr := p.Sleep(ctx, p.InProgressWait); serr != nil {
						return zero, serr
					}
					continue
				default:
					return zero, err
				}
			case http.StatusTooManyRequests:
				switch apiErr.RateLimitType() {
				case "application", "method":
					return zero, err
				default:
					// Service-side throttling, or a throttle from
					// infrastructure in front of the API. Not our
					// ledger's fault, so the try is not consumed.
					if serr := p.Sleep(ctx, apiErr.RetryAfter(p.ServiceWait)); serr != nil {
						return zero, serr
					}
					continue
				}
			}
		}

		triesLeft--
		if triesLeft <= 0 {
			return zero, err
		}
		if serr := p.Sleep(ctx, p.TransientWait); serr != nil {
			return zero, serr
		}
	}
}

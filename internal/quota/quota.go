// Package quota enforces the shared request quotas. Every outgoing vendor
// request is recorded in a request-history ledger keyed by (api key, region,
// method); Permit blocks until the request fits under every applicable quota
// simultaneously, across all processes sharing the ledger.
package quota

import (
	"context"
	"time"
)

// Quota is one admission rule: at most MaxRequests entries matching Region
// (and Method, when non-empty) within a sliding Window. An empty Method marks
// an app-wide quota.
type Quota struct {
	MaxRequests int
	Window      time.Duration
	Region      string
	Method      string
}

// Ledger admits requests against the shared request history.
//
// Permit blocks until every quota has headroom, then durably records a new
// entry with the current timestamp before returning.
type Ledger interface {
	Permit(ctx context.Context, apiKey, region, method, uri string, quotas []Quota) error
	Close() error
}

// entry is one recorded request, as read back from a backend.
type entry struct {
	At     time.Time
	Region string
	Method string
}

// decision is the outcome of evaluating one quota against the window read.
type decision struct {
	Quota Quota
	Count int
	Wait  time.Duration
}

// maxWindow is W_max: the single read window covering every supplied quota.
func maxWindow(quotas []Quota) time.Duration {
	var w time.Duration
	for _, q := range quotas {
		if q.Window > w {
			w = q.Window
		}
	}
	return w
}

// evaluate counts matching entries per quota. The first quota without
// headroom determines the wait: its window minus the age of the oldest entry
// inside that window, i.e. the time until one slot frees up.
func evaluate(now time.Time, entries []entry, quotas []Quota) []decision {
	decisions := make([]decision, 0, len(quotas))
	for _, q := range quotas {
		cutoff := now.Add(-q.Window)
		count := 0
		var oldest time.Time
		for _, e := range entries {
			if e.At.Before(cutoff) {
				continue
			}
			if q.Region != "" && e.Region != q.Region {
				continue
			}
			if q.Method != "" && e.Method != q.Method {
				continue
			}
			if count == 0 || e.At.Before(oldest) {
				oldest = e.At
			}
			count++
		}
		d := decision{Quota: q, Count: count}
		if count >= q.MaxRequests {
			d.Wait = q.Window - now.Sub(oldest)
			if d.Wait <= 0 {
				// The oldest entry ages out on the next re-read.
				d.Wait = time.Millisecond
			}
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// firstWait returns the wait of the first exhausted quota, or zero.
func firstWait(decisions []decision) time.Duration {
	for _, d := range decisions {
		if d.Wait > 0 {
			return d.Wait
		}
	}
	return 0
}

// sleep waits d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

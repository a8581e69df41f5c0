package quota

import (
	"context"
	"sync"
	"time"

	"github.com/riftwatch/riftwatch/internal/metrics"
)

// MemoryLedger keeps the request history in process memory. It coordinates
// goroutines within one process only; runners sharing an API key across
// processes need one of the database-backed ledgers.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []entry
	log     *AdmissionLog
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

func NewMemoryLedger(log *AdmissionLog) *MemoryLedger {
	return &MemoryLedger{log: log, now: time.Now, sleep: sleep}
}

func (m *MemoryLedger) Permit(ctx context.Context, apiKey, region, method, uri string, quotas []Quota) error {
	start := m.now()
	wMax := maxWindow(quotas)
	for {
		m.mu.Lock()
		now := m.now()
		m.trim(now.Add(-wMax))
		decisions := evaluate(now, m.entries, quotas)
		m.log.Record(now, region, decisions)
		wait := firstWait(decisions)
		if wait == 0 {
			m.entries = append(m.entries, entry{At: now, Region: region, Method: method})
			m.mu.Unlock()
			metrics.PermitWaitSeconds.Observe(m.now().Sub(start).Seconds())
			return nil
		}
		m.mu.Unlock()
		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// trim drops entries older than every configured window.
func (m *MemoryLedger) trim(cutoff time.Time) {
	keep := m.entries[:0]
	for _, e := range m.entries {
		if !e.At.Before(cutoff) {
			keep = append(keep, e)
		}
	}
	m.entries = keep
}

func (m *MemoryLedger) Close() error { return m.log.Close() }

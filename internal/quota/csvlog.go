package quota

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// AdmissionLog is the observability side channel: one CSV row per quota per
// admission decision, in the format the monitoring surface parses:
//
//	timestamp,region,method,window_seconds,current_count,max
//
// The method column is empty for app-wide quotas.
type AdmissionLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenAdmissionLog opens (appending) the CSV log at path. An empty path
// returns a nil log, on which Record is a no-op.
func OpenAdmissionLog(path string) (*AdmissionLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("quota: open admission log: %w", err)
	}
	return &AdmissionLog{f: f}, nil
}

func (l *AdmissionLog) Record(now time.Time, region string, decisions []decision) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range decisions {
		fmt.Fprintf(l.f, "%.3f,%s,%s,%d,%d,%d\n",
			float64(now.UnixMilli())/1000.0,
			region,
			d.Quota.Method,
			int(d.Quota.Window/time.Second),
			d.Count,
			d.Quota.MaxRequests)
	}
}

func (l *AdmissionLog) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}

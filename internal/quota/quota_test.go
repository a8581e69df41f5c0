package quota

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermitBlocksWhenQuotaFull(t *testing.T) {
	// 10 requests per 300ms; 15 permits back to back. The first 10 return
	// near-immediately, the 15th not before the first one aged out.
	ledger := NewMemoryLedger(nil)
	quotas := []Quota{{MaxRequests: 10, Window: 300 * time.Millisecond, Region: "EUW"}}
	ctx := context.Background()

	start := time.Now()
	var firstTen time.Duration
	for i := 0; i < 15; i++ {
		require.NoError(t, ledger.Permit(ctx, "key", "EUW", "m", "uri", quotas))
		if i == 9 {
			firstTen = time.Since(start)
		}
	}
	elapsed := time.Since(start)

	assert.Less(t, firstTen, 150*time.Millisecond, "first ten should be admitted immediately")
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "overflow permits must wait for the window")
}

func TestPermitNeverExceedsQuota(t *testing.T) {
	ledger := NewMemoryLedger(nil)
	window := 200 * time.Millisecond
	quotas := []Quota{{MaxRequests: 5, Window: window, Region: "EUW"}}
	ctx := context.Background()

	var admitted []time.Time
	for i := 0; i < 12; i++ {
		require.NoError(t, ledger.Permit(ctx, "key", "EUW", "m", "uri", quotas))
		admitted = append(admitted, time.Now())
	}

	// Sliding-window check over the admission timestamps themselves.
	for i := range admitted {
		count := 0
		for j := range admitted {
			d := admitted[i].Sub(admitted[j])
			if d >= 0 && d < window {
				count++
			}
		}
		assert.LessOrEqual(t, count, 5, "admissions within one window at index %d", i)
	}
}

func TestQuotasFilterByRegionAndMethod(t *testing.T) {
	ledger := NewMemoryLedger(nil)
	ctx := context.Background()
	quotas := func(region, method string) []Quota {
		return []Quota{
			{MaxRequests: 100, Window: time.Second, Region: region},
			{MaxRequests: 1, Window: 250 * time.Millisecond, Region: region, Method: method},
		}
	}

	start := time.Now()
	require.NoError(t, ledger.Permit(ctx, "key", "EUW", "matches", "uri", quotas("EUW", "matches")))
	// Different method and different region both have their own headroom.
	require.NoError(t, ledger.Permit(ctx, "key", "EUW", "leagues", "uri", quotas("EUW", "leagues")))
	require.NoError(t, ledger.Permit(ctx, "key", "KR", "matches", "uri", quotas("KR", "matches")))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// Same (region, method) again has to wait out the method window.
	require.NoError(t, ledger.Permit(ctx, "key", "EUW", "matches", "uri", quotas("EUW", "matches")))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestPermitHonoursContextCancellation(t *testing.T) {
	ledger := NewMemoryLedger(nil)
	quotas := []Quota{{MaxRequests: 1, Window: time.Hour, Region: "EUW"}}

	require.NoError(t, ledger.Permit(context.Background(), "key", "EUW", "m", "uri", quotas))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ledger.Permit(ctx, "key", "EUW", "m", "uri", quotas)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdmissionLogFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.csv")
	log, err := OpenAdmissionLog(path)
	require.NoError(t, err)

	ledger := NewMemoryLedger(log)
	quotas := []Quota{
		{MaxRequests: 10, Window: time.Second, Region: "EUW"},
		{MaxRequests: 5, Window: 10 * time.Second, Region: "EUW", Method: "/lol/match/v3/[matches,timelines]"},
	}
	require.NoError(t, ledger.Permit(context.Background(), "key", "EUW", "/lol/match/v3/[matches,timelines]", "uri", quotas))
	require.NoError(t, ledger.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2, "one row per quota per admission decision")

	appRow := strings.Split(lines[0], ",")
	require.Len(t, appRow, 6)
	assert.Equal(t, "EUW", appRow[1])
	assert.Equal(t, "", appRow[2], "app quota row carries an empty method")
	assert.Equal(t, "1", appRow[3])
	assert.Equal(t, "0", appRow[4])
	assert.Equal(t, "10", appRow[5])

	methodRow := strings.Split(lines[1], ",")
	assert.Equal(t, "/lol/match/v3/[matches,timelines]", methodRow[2])
	assert.Equal(t, "10", methodRow[3])
}

func TestEvaluateWaitUsesOldestInWindow(t *testing.T) {
	now := time.Now()
	entries := []entry{
		{At: now.Add(-700 * time.Millisecond), Region: "EUW"},
		{At: now.Add(-100 * time.Millisecond), Region: "EUW"},
	}
	decisions := evaluate(now, entries, []Quota{{MaxRequests: 2, Window: time.Second, Region: "EUW"}})
	require.Len(t, decisions, 1)
	assert.Equal(t, 2, decisions[0].Count)
	// window(1s) - age_of_oldest(700ms) = 300ms
	assert.InDelta(t, float64(300*time.Millisecond), float64(decisions[0].Wait), float64(5*time.Millisecond))
}

package riot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riftwatch/riftwatch/internal/quota"
)

// Limit is one (max requests, window) pair.
type Limit struct {
	MaxRequests   int `yaml:"max_requests" json:"max_requests"`
	WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`
}

func (l Limit) Window() time.Duration { return time.Duration(l.WindowSeconds) * time.Second }

// MethodLimit holds the quota set for one rate-limit class, either uniform
// or keyed by region (some classes have per-region ceilings).
type MethodLimit struct {
	PerRegion map[string][]Limit `yaml:"per_region"`
	Default   []Limit            `yaml:"default"`
}

// MethodLimits is the method-level rate-limit table keyed by rate-limit
// class.
type MethodLimits map[string]MethodLimit

// For resolves the limits applying to a method in a region. Missing entries
// resolve to nothing: the app-wide quotas still gate the request.
func (ml MethodLimits) For(method, region string) []Limit {
	entry, ok := ml[method]
	if !ok {
		return nil
	}
	if limits, ok := entry.PerRegion[region]; ok {
		return limits
	}
	return entry.Default
}

// LoadMethodLimits reads a YAML override for the compiled-in table.
func LoadMethodLimits(path string) (MethodLimits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("riot: read method limits: %w", err)
	}
	var ml MethodLimits
	if err := yaml.Unmarshal(raw, &ml); err != nil {
		return nil, fmt.Errorf("riot: parse method limits: %w", err)
	}
	return ml, nil
}

// DefaultMethodLimits is the compiled-in table, matching the vendor's
// published per-method ceilings at the time of writing.
func DefaultMethodLimits() MethodLimits {
	perMinute := func(n int) []Limit { return []Limit{{MaxRequests: n, WindowSeconds: 60}} }
	return MethodLimits{
		"/lol/summoner/v3/summoners/by-name/{summonerName}": {
			PerRegion: map[string][]Limit{
				"EUW": perMinute(2000), "KR": perMinute(2000), "NA": perMinute(2000),
				"EUNE": perMinute(1600),
				"BR":   perMinute(1300), "TR": perMinute(1300),
				"LAN": perMinute(1000), "LAS": perMinute(1000),
				"JP": perMinute(800), "OCE": perMinute(800),
				"RU": perMinute(600),
			},
		},
		"leagues-v3 endpoints": {
			PerRegion: map[string][]Limit{
				"EUW": perMinute(300), "NA": perMinute(270), "EUNE": perMinute(165),
				"BR": perMinute(90), "KR": perMinute(90),
				"LAN": perMinute(80), "LAS": perMinute(80),
				"TR": perMinute(60), "OCE": perMinute(55),
				"JP": perMinute(35), "RU": perMinute(35),
			},
		},
		"/lol/match/v3/matchlists/by-account/{accountId}": {
			Default: []Limit{{MaxRequests: 1000, WindowSeconds: 10}},
		},
		"/lol/match/v3/[matches,timelines]": {
			Default: []Limit{{MaxRequests: 500, WindowSeconds: 10}},
		},
		"All other endpoints": {
			Default: []Limit{{MaxRequests: 20000, WindowSeconds: 10}},
		},
	}
}

// quotasFor assembles every quota gating one request: the app-wide quotas
// (scoped to the region) plus the method-level ones.
func quotasFor(appLimits []Limit, methods MethodLimits, region, method string) []quota.Quota {
	quotas := make([]quota.Quota, 0, len(appLimits)+2)
	for _, l := range appLimits {
		quotas = append(quotas, quota.Quota{
			MaxRequests: l.MaxRequests,
			Window:      l.Window(),
			Region:      region,
		})
	}
	for _, l := range methods.For(method, region) {
		quotas = append(quotas, quota.Quota{
			MaxRequests: l.MaxRequests,
			Window:      l.Window(),
			Region:      region,
			Method:      method,
		})
	}
	return quotas
}

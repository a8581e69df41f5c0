package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/riftwatch/riftwatch/internal/catalog"
	"github.com/riftwatch/riftwatch/internal/metrics"
	"github.com/riftwatch/riftwatch/internal/quota"
)

// Client issues ledger-gated requests against the vendor API. Every call
// first acquires a permit covering the app-wide quotas plus the method's own,
// then runs the HTTP exchange through a circuit breaker so a flapping network
// fails fast instead of burning quota on timeouts.
type Client struct {
	http      *http.Client
	apiKey    string
	appLimits []Limit
	methods   MethodLimits
	ledger    quota.Ledger
	breaker   *gobreaker.CircuitBreaker
	log       zerolog.Logger
}

// ClientConfig carries everything a Client needs. MethodLimits defaults to
// the compiled-in table and HTTPClient to one with a 30s timeout.
type ClientConfig struct {
	APIKey       string
	AppLimits    []Limit
	MethodLimits MethodLimits
	Ledger       quota.Ledger
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MethodLimits == nil {
		cfg.MethodLimits = DefaultMethodLimits()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "riot-api",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &Client{
		http:      cfg.HTTPClient,
		apiKey:    cfg.APIKey,
		appLimits: cfg.AppLimits,
		methods:   cfg.MethodLimits,
		ledger:    cfg.Ledger,
		breaker:   breaker,
		log:       cfg.Logger,
	}
}

// get acquires a permit, performs the exchange and returns the body of a 2xx
// response. Non-2xx responses come back as *APIError.
func (c *Client) get(ctx context.Context, region, method, reqURL string) ([]byte, error) {
	quotas := quotasFor(c.appLimits, c.methods, region, method)
	if err := c.ledger.Permit(ctx, c.apiKey, region, method, reqURL, quotas); err != nil {
		return nil, fmt.Errorf("riot: permit %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("riot: build request: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(region, method, "transport_error").Inc()
		return nil, fmt.Errorf("riot: %s %s: %w", method, region, err)
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(region, method, "read_error").Inc()
		return nil, fmt.Errorf("riot: read response: %w", err)
	}
	metrics.RequestsTotal.WithLabelValues(region, method, strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.validateAppLimits(resp.Header); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("region", region).
		Str("method", method).
		Int("status", resp.StatusCode).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			URL:        reqURL,
		}
	}
	return body, nil
}

// validateAppLimits compares the X-App-Rate-Limit header against the
// configured app quotas. A mismatch means the ledger is enforcing the wrong
// ceilings, which ends the run.
func (c *Client) validateAppLimits(header http.Header) error {
	raw := header.Get("X-App-Rate-Limit")
	if raw == "" {
		return nil
	}
	advertised, err := parseAppLimits(raw)
	if err != nil {
		return fmt.Errorf("%w: bad header %q", ErrRatelimitMismatch, raw)
	}
	configured := append([]Limit(nil), c.appLimits...)
	sort.Slice(configured, func(i, j int) bool {
		return configured[i].WindowSeconds < configured[j].WindowSeconds
	})
	if len(advertised) != len(configured) {
		return fmt.Errorf("%w: server advertises %d limits, %d configured",
			ErrRatelimitMismatch, len(advertised), len(configured))
	}
	for i := range advertised {
		if advertised[i] != configured[i] {
			return fmt.Errorf("%w: server %d:%d vs configured %d:%d",
				ErrRatelimitMismatch,
				advertised[i].MaxRequests, advertised[i].WindowSeconds,
				configured[i].MaxRequests, configured[i].WindowSeconds)
		}
	}
	return nil
}

// parseAppLimits decodes the "max:window,max:window" header form, sorted by
// window seconds.
func parseAppLimits(raw string) ([]Limit, error) {
	parts := strings.Split(raw, ",")
	limits := make([]Limit, 0, len(parts))
	for _, p := range parts {
		var l Limit
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d:%d", &l.MaxRequests, &l.WindowSeconds); err != nil {
			return nil, fmt.Errorf("riot: parse limit %q: %w", p, err)
		}
		limits = append(limits, l)
	}
	sort.Slice(limits, func(i, j int) bool { return limits[i].WindowSeconds < limits[j].WindowSeconds })
	return limits, nil
}

// SummonerByName fetches the summoner behind a name.
func (c *Client) SummonerByName(ctx context.Context, region, name string) (*Summoner, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodSummonerByName, catalog.SummonerByNameURL(host, name, c.apiKey))
	if err != nil {
		return nil, err
	}
	var s Summoner
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("riot: decode summoner: %w", err)
	}
	return &s, nil
}

// TiersBySummoner fetches the ranked standings of a summoner. The raw body
// is returned alongside for verbatim persistence.
func (c *Client) TiersBySummoner(ctx context.Context, region string, summonerID int64) ([]LeaguePosition, []byte, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodLeagues, catalog.TiersBySummonerURL(host, summonerID, c.apiKey))
	if err != nil {
		return nil, nil, err
	}
	var positions []LeaguePosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, nil, fmt.Errorf("riot: decode league positions: %w", err)
	}
	return positions, body, nil
}

// ActiveMatch fetches the spectator view of a summoner's game in progress.
// A 404 means no game is running.
func (c *Client) ActiveMatch(ctx context.Context, region string, summonerID int64) (*CurrentMatch, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodSpectator, catalog.SpectatorBySummonerURL(host, summonerID, c.apiKey))
	if err != nil {
		return nil, err
	}
	var m CurrentMatch
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("riot: decode current match: %w", err)
	}
	return &m, nil
}

// Matchlist fetches the ranked solo queue matches of an account within the
// [beginTime, endTime) window. A 404 means no matches in the window.
func (c *Client) Matchlist(ctx context.Context, region string, accountID, beginTime, endTime int64) (*Matchlist, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodMatchlist,
		catalog.MatchlistByAccountURL(host, accountID, beginTime, endTime, c.apiKey))
	if err != nil {
		return nil, err
	}
	var ml Matchlist
	if err := json.Unmarshal(body, &ml); err != nil {
		return nil, fmt.Errorf("riot: decode matchlist: %w", err)
	}
	return &ml, nil
}

// MatchResult fetches the post-game record of a match. The raw body is
// returned alongside for verbatim persistence. A 404 means the match is
// still being played.
func (c *Client) MatchResult(ctx context.Context, region string, matchID int64) (*MatchResult, []byte, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodMatch, catalog.MatchByIDURL(host, matchID, c.apiKey))
	if err != nil {
		return nil, nil, err
	}
	var mr MatchResult
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, nil, fmt.Errorf("riot: decode match result: %w", err)
	}
	return &mr, body, nil
}

// MatchTimeline fetches the minute-by-minute record of a finished match. The
// raw body is returned alongside for verbatim persistence.
func (c *Client) MatchTimeline(ctx context.Context, region string, matchID int64) (*Timeline, []byte, error) {
	host, err := catalog.HostForRegion(region)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.get(ctx, region, catalog.MethodMatch, catalog.TimelineByMatchURL(host, matchID, c.apiKey))
	if err != nil {
		return nil, nil, err
	}
	var tl Timeline
	if err := json.Unmarshal(body, &tl); err != nil {
		return nil, nil, fmt.Errorf("riot: decode timeline: %w", err)
	}
	return &tl, body, nil
}

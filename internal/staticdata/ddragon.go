// Package staticdata keeps the game client's static data (versions,
// champions, items, spells, runes) mirrored locally and resolves match
// versions against it.
package staticdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/riftwatch/riftwatch/internal/catalog"
)

// DataDragon fetches static data files from the client CDN. The CDN sits
// outside the vendor quota system, so requests bypass the ledger but are
// paced with a local limiter to stay polite.
type DataDragon struct {
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewDataDragon(httpClient *http.Client, log zerolog.Logger) *DataDragon {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &DataDragon{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(4), 1),
		log:     log,
	}
}

func (d *DataDragon) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("staticdata: build request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("staticdata: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("staticdata: fetch %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", url, err)
	}
	d.log.Debug().Str("url", url).Int("bytes", len(body)).Msg("static data fetched")
	return body, nil
}

// Versions returns the published client versions, newest first.
func (d *DataDragon) Versions(ctx context.Context) ([]string, error) {
	body, err := d.fetch(ctx, catalog.DataDragonVersionsURL)
	if err != nil {
		return nil, err
	}
	var versions []string
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("staticdata: parse versions: %w", err)
	}
	return versions, nil
}

func (d *DataDragon) ProfileIcons(ctx context.Context, version string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonProfileIconsURL(version))
}

func (d *DataDragon) Champions(ctx context.Context, version string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonChampionsURL(version))
}

func (d *DataDragon) Champion(ctx context.Context, version, championID string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonChampionURL(version, championID))
}

func (d *DataDragon) Items(ctx context.Context, version string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonItemsURL(version))
}

func (d *DataDragon) SummonerSpells(ctx context.Context, version string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonSummonerSpellsURL(version))
}

func (d *DataDragon) Runes(ctx context.Context, version string) ([]byte, error) {
	return d.fetch(ctx, catalog.DataDragonRunesURL(version))
}

package staticdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/fights"
	"github.com/riftwatch/riftwatch/internal/store"
)

// ErrUnknownVersion is returned when a match's game version matches no
// published client version even after a refresh.
var ErrUnknownVersion = errors.New("staticdata: unknown game version")

// ErrMissingItems is returned when a version's items catalogue has not been
// gathered yet.
var ErrMissingItems = errors.New("staticdata: items catalogue not gathered")

// MajorMinor truncates a version string to its first two components.
// Match results report four-part builds while the client publishes
// three-part versions, so they only ever agree on major.minor.
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// Resolver maps match version strings onto known client versions, refreshing
// the version list from the CDN when an unseen one appears.
type Resolver struct {
	store *store.Store
	dd    *DataDragon
	log   zerolog.Logger
}

func NewResolver(st *store.Store, dd *DataDragon, log zerolog.Logger) *Resolver {
	return &Resolver{store: st, dd: dd, log: log}
}

// EnsureVersion resolves a match's gameVersion to the earliest known client
// version sharing its major.minor. New versions are pulled from the CDN once
// before giving up.
func (r *Resolver) EnsureVersion(ctx context.Context, gameVersion string) (*store.GameVersion, error) {
	want := MajorMinor(gameVersion)

	known, err := r.store.Versions.All(ctx)
	if err != nil {
		return nil, err
	}
	if v := matchVersion(known, want); v != nil {
		return v, nil
	}

	fresh, err := r.dd.Versions(ctx)
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, v := range known {
		knownSet[v.Semver] = true
	}
	for _, semver := range fresh {
		if knownSet[semver] {
			continue
		}
		r.log.Info().Str("semver", semver).Msg("new game version")
		if _, err := r.store.Versions.GetOrCreate(ctx, semver); err != nil {
			return nil, err
		}
	}

	known, err = r.store.Versions.All(ctx)
	if err != nil {
		return nil, err
	}
	if v := matchVersion(known, want); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, gameVersion)
}

func matchVersion(known []store.GameVersion, majorMinor string) *store.GameVersion {
	for i := range known {
		if MajorMinor(known[i].Semver) == majorMinor {
			return &known[i]
		}
	}
	return nil
}

// Catalogs hands out parsed item catalogues per client version, cached in
// memory for the life of the process.
type Catalogs struct {
	store *store.Store

	mu    sync.Mutex
	cache map[string]*fights.Catalog
}

func NewCatalogs(st *store.Store) *Catalogs {
	return &Catalogs{store: st, cache: make(map[string]*fights.Catalog)}
}

// CatalogFor returns the items catalogue for a client version, or
// ErrMissingItems when the version's static data has not been gathered.
func (c *Catalogs) CatalogFor(ctx context.Context, semver string) (*fights.Catalog, error) {
	c.mu.Lock()
	cached, ok := c.cache[semver]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	itemsJSON, err := c.store.StaticData.ItemsJSONByVersion(ctx, semver)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingItems, semver)
	}
	if err != nil {
		return nil, err
	}
	catalog, err := fights.NewCatalog(itemsJSON)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[semver] = catalog
	c.mu.Unlock()
	return catalog, nil
}

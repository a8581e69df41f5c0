package staticdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/store"
)

// Gatherer mirrors new client versions and their static data files into the
// store. Meant to run periodically.
type Gatherer struct {
	store *store.Store
	dd    *DataDragon
	log   zerolog.Logger
}

func NewGatherer(st *store.Store, dd *DataDragon, log zerolog.Logger) *Gatherer {
	return &Gatherer{store: st, dd: dd, log: log}
}

type championsFile struct {
	Data map[string]struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// Run registers any unseen published versions, then backfills the static
// data aggregate for every version that lacks one.
func (g *Gatherer) Run(ctx context.Context) error {
	known, err := g.store.Versions.All(ctx)
	if err != nil {
		return err
	}
	knownSet := make(map[string]bool, len(known))
	for _, v := range known {
		knownSet[v.Semver] = true
	}

	fresh, err := g.dd.Versions(ctx)
	if err != nil {
		return err
	}
	for _, semver := range fresh {
		if knownSet[semver] {
			continue
		}
		g.log.Info().Str("semver", semver).Msg("registering new game version")
		if _, err := g.store.Versions.GetOrCreate(ctx, semver); err != nil {
			return err
		}
	}

	versions, err := g.store.Versions.All(ctx)
	if err != nil {
		return err
	}
	for _, version := range versions {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := g.store.StaticData.GetByVersion(ctx, version.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		g.log.Info().Str("semver", version.Semver).Msg("gathering static data set")
		if err := g.gatherVersion(ctx, version); err != nil {
			return fmt.Errorf("staticdata: gather %s: %w", version.Semver, err)
		}
	}
	return nil
}

// gatherVersion fetches every data file for one version. Nothing is written
// until all fetches succeed, so a CDN hiccup never leaves a partial set.
func (g *Gatherer) gatherVersion(ctx context.Context, version store.GameVersion) error {
	profileIcons, err := g.dd.ProfileIcons(ctx, version.Semver)
	if err != nil {
		return err
	}
	championsRaw, err := g.dd.Champions(ctx, version.Semver)
	if err != nil {
		return err
	}
	items, err := g.dd.Items(ctx, version.Semver)
	if err != nil {
		return err
	}
	spells, err := g.dd.SummonerSpells(ctx, version.Semver)
	if err != nil {
		return err
	}
	runes, err := g.dd.Runes(ctx, version.Semver)
	if err != nil {
		return err
	}

	var champions championsFile
	if err := json.Unmarshal(championsRaw, &champions); err != nil {
		return fmt.Errorf("parse champions list: %w", err)
	}
	type championData struct {
		name string
		data []byte
	}
	gathered := make([]championData, 0, len(champions.Data))
	for _, c := range champions.Data {
		data, err := g.dd.Champion(ctx, version.Semver, c.ID)
		if err != nil {
			return err
		}
		gathered = append(gathered, championData{name: c.Name, data: data})
	}

	for _, c := range gathered {
		champion, err := g.store.StaticData.GetOrCreateChampion(ctx, c.name)
		if err != nil {
			return err
		}
		if err := g.store.StaticData.PutChampionData(ctx, version.ID, champion.ID, c.data); err != nil {
			return err
		}
	}
	return g.store.StaticData.Put(ctx, &store.StaticGameData{
		GameVersionID:    version.ID,
		ProfileIconsJSON: string(profileIcons),
		ItemsJSON:        string(items),
		SummonerSpells:   string(spells),
		RunesJSON:        string(runes),
	})
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StaticDataRepo maintains the per-version client data files and the
// champion enumeration.
type StaticDataRepo struct {
	db *sqlx.DB
}

// GetByVersion returns the static data aggregate for one version, or
// ErrNotFound.
func (r *StaticDataRepo) GetByVersion(ctx context.Context, gameVersionID int64) (*StaticGameData, error) {
	var d StaticGameData
	err := r.db.GetContext(ctx, &d,
		`SELECT id, game_version_id, profile_icons_json, items_json, summoner_spells_json, runes_json
		 FROM static_game_data WHERE game_version_id = $1`, gameVersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get static data: %w", err)
	}
	return &d, nil
}

// Put stores the aggregate for one version, first writer wins.
func (r *StaticDataRepo) Put(ctx context.Context, d *StaticGameData) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO static_game_data
		 (game_version_id, profile_icons_json, items_json, summoner_spells_json, runes_json)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (game_version_id) DO NOTHING`,
		d.GameVersionID, d.ProfileIconsJSON, d.ItemsJSON, d.SummonerSpells, d.RunesJSON)
	if err != nil {
		return fmt.Errorf("store: put static data: %w", err)
	}
	return nil
}

// GetOrCreateChampion resolves a champion name to its enumeration row.
func (r *StaticDataRepo) GetOrCreateChampion(ctx context.Context, name string) (*Champion, error) {
	var c Champion
	err := r.db.GetContext(ctx, &c, `SELECT id, name FROM champions WHERE name = $1`, name)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get champion: %w", err)
	}
	err = r.db.GetContext(ctx, &c,
		`INSERT INTO champions (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`, name)
	if err != nil {
		return nil, fmt.Errorf("store: create champion: %w", err)
	}
	return &c, nil
}

// PutChampionData stores one champion's data file for one version, first
// writer wins.
func (r *StaticDataRepo) PutChampionData(ctx context.Context, gameVersionID, championID int64, dataJSON []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO champion_game_data (game_version_id, champion_id, data_json)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (game_version_id, champion_id) DO NOTHING`,
		gameVersionID, championID, string(dataJSON))
	if err != nil {
		return fmt.Errorf("store: put champion data: %w", err)
	}
	return nil
}

// ItemsJSONByVersion returns the raw items catalogue for one semver, or
// ErrNotFound when the version or its static data is absent.
func (r *StaticDataRepo) ItemsJSONByVersion(ctx context.Context, semver string) ([]byte, error) {
	var items string
	err := r.db.GetContext(ctx, &items,
		`SELECT sgd.items_json
		 FROM static_game_data sgd
		 JOIN game_versions gv ON gv.id = sgd.game_version_id
		 WHERE gv.semver = $1`, semver)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get items catalogue: %w", err)
	}
	return []byte(items), nil
}

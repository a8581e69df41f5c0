package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RegionRepo resolves region rows by name.
type RegionRepo struct {
	db *sqlx.DB
}

// GetOrCreate returns the region row for name, inserting it on first sight.
func (r *RegionRepo) GetOrCreate(ctx context.Context, name string) (*Region, error) {
	var region Region
	err := r.db.GetContext(ctx, &region, `SELECT id, name FROM regions WHERE name = $1`, name)
	if err == nil {
		return &region, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get region: %w", err)
	}
	err = r.db.GetContext(ctx, &region,
		`INSERT INTO regions (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`, name)
	if err != nil {
		return nil, fmt.Errorf("store: create region: %w", err)
	}
	return &region, nil
}

// VersionRepo tracks known game client versions.
type VersionRepo struct {
	db *sqlx.DB
}

// All returns every known version.
func (r *VersionRepo) All(ctx context.Context) ([]GameVersion, error) {
	var versions []GameVersion
	if err := r.db.SelectContext(ctx, &versions, `SELECT id, semver FROM game_versions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	return versions, nil
}

// GetOrCreate returns the version row for semver, inserting it on first sight.
func (r *VersionRepo) GetOrCreate(ctx context.Context, semver string) (*GameVersion, error) {
	var v GameVersion
	err := r.db.GetContext(ctx, &v, `SELECT id, semver FROM game_versions WHERE semver = $1`, semver)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get version: %w", err)
	}
	err = r.db.GetContext(ctx, &v,
		`INSERT INTO game_versions (semver) VALUES ($1)
		 ON CONFLICT (semver) DO UPDATE SET semver = EXCLUDED.semver
		 RETURNING id, semver`, semver)
	if err != nil {
		return nil, fmt.Errorf("store: create version: %w", err)
	}
	return &v, nil
}

// SummonerRepo maintains the summoner directory.
type SummonerRepo struct {
	db *sqlx.DB
}

// Upsert inserts or refreshes a summoner keyed by (region, summoner id).
// Names change over time, account ids occasionally do too.
func (r *SummonerRepo) Upsert(ctx context.Context, regionID, accountID, summonerID int64, name string) (*Summoner, error) {
	var s Summoner
	err := r.db.GetContext(ctx, &s,
		`INSERT INTO summoners (region_id, account_id, summoner_id, latest_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (region_id, summoner_id)
		 DO UPDATE SET account_id = EXCLUDED.account_id, latest_name = EXCLUDED.latest_name
		 RETURNING id, region_id, account_id, summoner_id, latest_name`,
		regionID, accountID, summonerID, name)
	if err != nil {
		return nil, fmt.Errorf("store: upsert summoner: %w", err)
	}
	return &s, nil
}

// TierHistoryRepo appends ranked-standing milestones.
type TierHistoryRepo struct {
	db *sqlx.DB
}

// Append records a summoner's current tier alongside the verbatim standings
// body.
func (r *TierHistoryRepo) Append(ctx context.Context, summonerPK int64, tier string, tiersJSON []byte) (*TierMilestone, error) {
	var m TierMilestone
	err := r.db.GetContext(ctx, &m,
		`INSERT INTO summoner_tier_histories (summoner_pk, tier, tiers_json)
		 VALUES ($1, $2, $3)
		 RETURNING id, summoner_pk, at_time, tier, tiers_json`,
		summonerPK, tier, string(tiersJSON))
	if err != nil {
		return nil, fmt.Errorf("store: append tier history: %w", err)
	}
	return &m, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MatchRepo maintains historical match rows. A row is claimed bare when the
// match is first seen and filled piecewise afterwards, so every writer must
// tolerate concurrent claims on the (match_id, region_id) key.
type MatchRepo struct {
	db *sqlx.DB
}

const matchColumns = `id, match_id, region_id, game_version_id, regional_tier_avg,
	regional_tier_meta, game_duration, match_result_json, match_timeline_json,
	match_participants_histories_json`

// Get returns the match row, or ErrNotFound.
func (r *MatchRepo) Get(ctx context.Context, matchID, regionID int64) (*Match, error) {
	var m Match
	err := r.db.GetContext(ctx, &m,
		`SELECT `+matchColumns+` FROM historical_matches WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get match: %w", err)
	}
	return &m, nil
}

// Claim inserts a bare row for the match, reserving the observation for this
// process. ErrMatchTaken when any row already exists.
func (r *MatchRepo) Claim(ctx context.Context, matchID, regionID int64) error {
	if _, err := r.Get(ctx, matchID, regionID); err == nil {
		return ErrMatchTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO historical_matches (match_id, region_id) VALUES ($1, $2)`,
		matchID, regionID)
	if isUniqueViolation(err) {
		return ErrMatchTaken
	}
	if err != nil {
		return fmt.Errorf("store: claim match: %w", err)
	}
	return nil
}

// Insert creates a row with whatever fields m carries filled in.
// ErrMatchTaken when the key already exists.
func (r *MatchRepo) Insert(ctx context.Context, m *Match) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO historical_matches
		 (match_id, region_id, game_version_id, regional_tier_avg, regional_tier_meta,
		  game_duration, match_result_json, match_timeline_json, match_participants_histories_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.MatchID, m.RegionID, m.GameVersionID, m.RegionalTierAvg, m.RegionalTiers,
		m.GameDuration, m.ResultJSON, m.TimelineJSON, m.HistoriesJSON)
	if isUniqueViolation(err) {
		return ErrMatchTaken
	}
	if err != nil {
		return fmt.Errorf("store: insert match: %w", err)
	}
	return nil
}

// AttachTiers records the pre-game tier average and per-team standings.
// These are only obtainable while the match runs, so they are never
// overwritten.
func (r *MatchRepo) AttachTiers(ctx context.Context, matchID, regionID int64, tierAvg string, tiersMeta []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE historical_matches
		 SET regional_tier_avg = COALESCE(regional_tier_avg, $3),
		     regional_tier_meta = COALESCE(regional_tier_meta, $4)
		 WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID, tierAvg, string(tiersMeta))
	if err != nil {
		return fmt.Errorf("store: attach tiers: %w", err)
	}
	return nil
}

// AttachResult records the post-game body, duration and resolved version.
func (r *MatchRepo) AttachResult(ctx context.Context, matchID, regionID int64, versionID sql.NullInt64, duration int64, resultJSON []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE historical_matches
		 SET game_version_id = COALESCE(game_version_id, $3),
		     game_duration = COALESCE(game_duration, $4),
		     match_result_json = COALESCE(match_result_json, $5)
		 WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID, versionID, duration, string(resultJSON))
	if err != nil {
		return fmt.Errorf("store: attach result: %w", err)
	}
	return nil
}

// AttachTimeline records the timeline body.
func (r *MatchRepo) AttachTimeline(ctx context.Context, matchID, regionID int64, timelineJSON []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE historical_matches
		 SET match_timeline_json = COALESCE(match_timeline_json, $3)
		 WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID, string(timelineJSON))
	if err != nil {
		return fmt.Errorf("store: attach timeline: %w", err)
	}
	return nil
}

// AttachHistories records the per-participant history features.
func (r *MatchRepo) AttachHistories(ctx context.Context, matchID, regionID int64, historiesJSON []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE historical_matches
		 SET match_participants_histories_json = COALESCE(match_participants_histories_json, $3)
		 WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID, string(historiesJSON))
	if err != nil {
		return fmt.Errorf("store: attach histories: %w", err)
	}
	return nil
}

// AttachVersion records the resolved game version on its own, for repairs
// where the result body already exists.
func (r *MatchRepo) AttachVersion(ctx context.Context, matchID, regionID, versionID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE historical_matches
		 SET game_version_id = COALESCE(game_version_id, $3)
		 WHERE match_id = $1 AND region_id = $2`,
		matchID, regionID, versionID)
	if err != nil {
		return fmt.Errorf("store: attach version: %w", err)
	}
	return nil
}

// Incomplete sweeps one region for rows with a tier average and a real game
// duration but missing result, timeline, histories or version. An empty
// semver matches every version, including rows whose version is still
// unresolved.
func (r *MatchRepo) Incomplete(ctx context.Context, regionID int64, semver string) ([]IncompleteMatch, error) {
	const baseQuery = `
		SELECT
			hm.match_id,
			hm.game_version_id IS NULL AS version_missing,
			hm.match_result_json IS NULL AS result_missing,
			hm.match_timeline_json IS NULL AS timeline_missing,
			hm.match_participants_histories_json IS NULL AS history_missing
		FROM historical_matches hm
		LEFT JOIN game_versions gv ON gv.id = hm.game_version_id
		WHERE hm.region_id = $1
			AND hm.regional_tier_avg IS NOT NULL
			AND hm.game_duration > 300
			AND (hm.match_result_json IS NULL
				OR hm.match_timeline_json IS NULL
				OR hm.match_participants_histories_json IS NULL
				OR hm.game_version_id IS NULL)`

	var rows []IncompleteMatch
	var err error
	if semver == "" {
		err = r.db.SelectContext(ctx, &rows, baseQuery+` ORDER BY hm.match_id`, regionID)
	} else {
		err = r.db.SelectContext(ctx, &rows, baseQuery+` AND gv.semver = $2 ORDER BY hm.match_id`, regionID, semver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: sweep incomplete matches: %w", err)
	}
	return rows, nil
}

// ByVersionTier pages finished matches of one version and tier average, for
// offline feature scans.
func (r *MatchRepo) ByVersionTier(ctx context.Context, regionID int64, semver, tierAvg string, offset, limit int) ([]Match, error) {
	var rows []Match
	err := r.db.SelectContext(ctx, &rows,
		`SELECT hm.id, hm.match_id, hm.region_id, hm.game_version_id, hm.regional_tier_avg,
			hm.regional_tier_meta, hm.game_duration, hm.match_result_json,
			hm.match_timeline_json, hm.match_participants_histories_json
		 FROM historical_matches hm
		 JOIN game_versions gv ON gv.id = hm.game_version_id
		 WHERE hm.region_id = $1
			AND gv.semver = $2
			AND hm.regional_tier_avg = $3
			AND hm.match_result_json IS NOT NULL
			AND hm.match_timeline_json IS NOT NULL
		 ORDER BY hm.match_id
		 OFFSET $4 LIMIT $5`,
		regionID, semver, tierAvg, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("store: page matches: %w", err)
	}
	return rows, nil
}

// Package store is the persistence layer: regions, summoners, tier history,
// historical matches and static game data in PostgreSQL. Response bodies are
// stored verbatim as JSON text so reprocessing never needs the API again.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrMatchTaken is returned when a match row already exists, meaning
	// another process claimed the observation.
	ErrMatchTaken = errors.New("store: match already taken")
)

// Region is a game server or regional server group.
type Region struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// GameVersion is one game client release, SemVer based.
type GameVersion struct {
	ID     int64  `db:"id"`
	Semver string `db:"semver"`
}

// Summoner is a player account on one region. AccountID and SummonerID are
// both kept: match history is keyed by account, most other endpoints by
// summoner.
type Summoner struct {
	ID         int64  `db:"id"`
	RegionID   int64  `db:"region_id"`
	AccountID  int64  `db:"account_id"`
	SummonerID int64  `db:"summoner_id"`
	LatestName string `db:"latest_name"`
}

// TierMilestone is a summoner's ranked standing at one moment in time.
type TierMilestone struct {
	ID         int64     `db:"id"`
	SummonerPK int64     `db:"summoner_pk"`
	AtTime     time.Time `db:"at_time"`
	Tier       string    `db:"tier"`
	TiersJSON  string    `db:"tiers_json"`
}

// Match is one observed or backfilled match. Everything beyond the key is
// nullable: rows are claimed bare and filled in stages.
type Match struct {
	ID              int64          `db:"id"`
	MatchID         int64          `db:"match_id"`
	RegionID        int64          `db:"region_id"`
	GameVersionID   sql.NullInt64  `db:"game_version_id"`
	RegionalTierAvg sql.NullString `db:"regional_tier_avg"`
	RegionalTiers   sql.NullString `db:"regional_tier_meta"`
	GameDuration    sql.NullInt64  `db:"game_duration"`
	ResultJSON      sql.NullString `db:"match_result_json"`
	TimelineJSON    sql.NullString `db:"match_timeline_json"`
	HistoriesJSON   sql.NullString `db:"match_participants_histories_json"`
}

// IncompleteMatch is one row of the repair sweep, flagging which pieces are
// missing.
type IncompleteMatch struct {
	MatchID         int64 `db:"match_id"`
	VersionMissing  bool  `db:"version_missing"`
	ResultMissing   bool  `db:"result_missing"`
	TimelineMissing bool  `db:"timeline_missing"`
	HistoryMissing  bool  `db:"history_missing"`
}

// StaticGameData is the aggregate of client data files for one version.
type StaticGameData struct {
	ID               int64  `db:"id"`
	GameVersionID    int64  `db:"game_version_id"`
	ProfileIconsJSON string `db:"profile_icons_json"`
	ItemsJSON        string `db:"items_json"`
	SummonerSpells   string `db:"summoner_spells_json"`
	RunesJSON        string `db:"runes_json"`
}

// Champion is a champion name enumeration row.
type Champion struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Store bundles the repositories over one PostgreSQL pool.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger

	Regions       *RegionRepo
	Versions      *VersionRepo
	Summoners     *SummonerRepo
	TierHistories *TierHistoryRepo
	Matches       *MatchRepo
	StaticData    *StaticDataRepo
}

// Open connects to PostgreSQL and pings it.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db, log), nil
}

// NewStore wires the repositories over an existing pool.
func NewStore(db *sqlx.DB, log zerolog.Logger) *Store {
	return &Store{
		db:            db,
		log:           log,
		Regions:       &RegionRepo{db: db},
		Versions:      &VersionRepo{db: db},
		Summoners:     &SummonerRepo{db: db},
		TierHistories: &TierHistoryRepo{db: db},
		Matches:       &MatchRepo{db: db},
		StaticData:    &StaticDataRepo{db: db},
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	s.log.Debug().Msg("schema ensured")
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// isUniqueViolation reports a PostgreSQL duplicate-key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const schema = `
CREATE TABLE IF NOT EXISTS regions (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS game_versions (
	id BIGSERIAL PRIMARY KEY,
	semver TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS champions (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS champion_game_data (
	id BIGSERIAL PRIMARY KEY,
	game_version_id BIGINT NOT NULL REFERENCES game_versions(id) ON DELETE CASCADE,
	champion_id BIGINT NOT NULL REFERENCES champions(id) ON DELETE CASCADE,
	data_json TEXT NOT NULL,
	UNIQUE (game_version_id, champion_id)
);

CREATE TABLE IF NOT EXISTS static_game_data (
	id BIGSERIAL PRIMARY KEY,
	game_version_id BIGINT NOT NULL UNIQUE REFERENCES game_versions(id) ON DELETE CASCADE,
	profile_icons_json TEXT NOT NULL,
	items_json TEXT NOT NULL,
	summoner_spells_json TEXT NOT NULL,
	runes_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summoners (
	id BIGSERIAL PRIMARY KEY,
	region_id BIGINT NOT NULL REFERENCES regions(id),
	account_id BIGINT NOT NULL,
	summoner_id BIGINT NOT NULL,
	latest_name TEXT NOT NULL,
	UNIQUE (region_id, account_id),
	UNIQUE (region_id, summoner_id)
);

CREATE TABLE IF NOT EXISTS summoner_tier_histories (
	id BIGSERIAL PRIMARY KEY,
	summoner_pk BIGINT NOT NULL REFERENCES summoners(id) ON DELETE CASCADE,
	at_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	tier TEXT NOT NULL,
	tiers_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS historical_matches (
	id BIGSERIAL PRIMARY KEY,
	match_id BIGINT NOT NULL,
	region_id BIGINT NOT NULL REFERENCES regions(id),
	game_version_id BIGINT REFERENCES game_versions(id),
	regional_tier_avg TEXT,
	regional_tier_meta TEXT,
	game_duration BIGINT,
	match_result_json TEXT,
	match_timeline_json TEXT,
	match_participants_histories_json TEXT,
	UNIQUE (match_id, region_id)
);
`

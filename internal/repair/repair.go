// Package repair backfills matches whose observation ended early: missing
// timelines, results, participant histories and unresolved game versions.
// Rows qualify only once their tier average is known, since that part is
// unrecoverable after the fact.
package repair

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/lanes"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/staticdata"
	"github.com/riftwatch/riftwatch/internal/store"
)

// API is the vendor surface the repairer needs.
type API interface {
	MatchResult(ctx context.Context, region string, matchID int64) (*riot.MatchResult, []byte, error)
	MatchTimeline(ctx context.Context, region string, matchID int64) (*riot.Timeline, []byte, error)
}

// MatchStore is the slice of the match repository the repairer reads and
// writes.
type MatchStore interface {
	Get(ctx context.Context, matchID, regionID int64) (*store.Match, error)
	Incomplete(ctx context.Context, regionID int64, semver string) ([]store.IncompleteMatch, error)
	AttachResult(ctx context.Context, matchID, regionID int64, versionID sql.NullInt64, duration int64, resultJSON []byte) error
	AttachTimeline(ctx context.Context, matchID, regionID int64, timelineJSON []byte) error
	AttachHistories(ctx context.Context, matchID, regionID int64, historiesJSON []byte) error
	AttachVersion(ctx context.Context, matchID, regionID, versionID int64) error
}

// AvailabilitySource counts a participant's historical sample sizes.
type AvailabilitySource interface {
	Availability(ctx context.Context, req history.AvailabilityRequest) (*history.AvailabilityRecord, error)
}

// Repairer sweeps one region's incomplete matches and fills what it can.
// Each gap is independent, except that a result is a dependency for both the
// histories and the version.
type Repairer struct {
	API       API
	Matches   MatchStore
	Versions  history.VersionSource
	Histories AvailabilitySource
	Region    store.Region
	Log       zerolog.Logger
	Sleep     func(context.Context, time.Duration) error
}

// Run sweeps every incomplete match, optionally limited to one game version.
// Per-match failures are logged and left for the next sweep; only fatal
// rate-limit and context errors end the run.
func (r *Repairer) Run(ctx context.Context, semver string) error {
	rows, err := r.Matches.Incomplete(ctx, r.Region.ID, semver)
	if err != nil {
		return err
	}
	r.Log.Info().Int("matches", len(rows)).Str("region", r.Region.Name).Msg("starting repair sweep")

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.repairOne(ctx, row); err != nil {
			if riot.IsFatalRateLimit(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.Log.Warn().Err(err).Int64("match_id", row.MatchID).Msg("match left for the next sweep")
		}
	}
	return nil
}

func (r *Repairer) repairOne(ctx context.Context, row store.IncompleteMatch) error {
	m, err := r.Matches.Get(ctx, row.MatchID, r.Region.ID)
	if err != nil {
		return err
	}
	log := r.Log.With().Int64("match_id", row.MatchID).Logger()

	timeline, err := r.ensureTimeline(ctx, m, row.TimelineMissing)
	if err != nil {
		log.Warn().Err(err).Msg("timeline not recovered")
	}

	result, err := r.ensureResult(ctx, m, row.ResultMissing)
	if err != nil {
		// Without a result neither the histories nor the version can
		// be rebuilt.
		return err
	}

	if row.HistoryMissing {
		if err := r.rebuildHistories(ctx, m, result, timeline); err != nil {
			return err
		}
	}

	if row.VersionMissing {
		if err := r.resolveVersion(ctx, m, result); err != nil {
			return err
		}
	}
	return nil
}

// ensureTimeline returns the stored timeline, fetching and attaching it
// first when missing.
func (r *Repairer) ensureTimeline(ctx context.Context, m *store.Match, missing bool) (*riot.Timeline, error) {
	if !missing {
		if !m.TimelineJSON.Valid {
			return nil, nil
		}
		var timeline riot.Timeline
		if err := json.Unmarshal([]byte(m.TimelineJSON.String), &timeline); err != nil {
			return nil, err
		}
		return &timeline, nil
	}

	type fetched struct {
		timeline *riot.Timeline
		raw      []byte
	}
	f, err := riot.Retry(ctx, riot.RetryPolicy{Retries: 1, Sleep: r.Sleep},
		func(ctx context.Context) (fetched, error) {
			timeline, raw, err := r.API.MatchTimeline(ctx, r.Region.Name, m.MatchID)
			return fetched{timeline: timeline, raw: raw}, err
		})
	if err != nil {
		return nil, err
	}
	if err := r.Matches.AttachTimeline(ctx, m.MatchID, m.RegionID, f.raw); err != nil {
		return nil, err
	}
	r.Log.Info().Int64("match_id", m.MatchID).Msg("recovered timeline")
	return f.timeline, nil
}

// ensureResult returns the stored result, fetching and attaching it first
// when missing. The version resolves opportunistically alongside.
func (r *Repairer) ensureResult(ctx context.Context, m *store.Match, missing bool) (*riot.MatchResult, error) {
	if !missing {
		var result riot.MatchResult
		if err := json.Unmarshal([]byte(m.ResultJSON.String), &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	type fetched struct {
		result *riot.MatchResult
		raw    []byte
	}
	f, err := riot.Retry(ctx, riot.RetryPolicy{Retries: 1, Sleep: r.Sleep},
		func(ctx context.Context) (fetched, error) {
			result, raw, err := r.API.MatchResult(ctx, r.Region.Name, m.MatchID)
			return fetched{result: result, raw: raw}, err
		})
	if err != nil {
		return nil, err
	}

	versionID := sql.NullInt64{}
	version, err := r.Versions.EnsureVersion(ctx, f.result.GameVersion)
	switch {
	case err == nil:
		versionID = sql.NullInt64{Int64: version.ID, Valid: true}
	case errors.Is(err, staticdata.ErrUnknownVersion):
	default:
		return nil, err
	}
	if err := r.Matches.AttachResult(ctx, m.MatchID, m.RegionID, versionID, f.result.GameDuration, f.raw); err != nil {
		return nil, err
	}
	r.Log.Info().Int64("match_id", m.MatchID).Msg("recovered result")
	return f.result, nil
}

// rebuildHistories fills the missing histories column with availability
// counts per participant. A full feature record is not reproducible after
// the fact, but the sample sizes still are.
func (r *Repairer) rebuildHistories(ctx context.Context, m *store.Match, result *riot.MatchResult, timeline *riot.Timeline) error {
	if timeline == nil {
		r.Log.Warn().Int64("match_id", m.MatchID).Msg("no timeline, histories not rebuildable")
		return nil
	}

	mapping := lanes.Assign(result, timeline)
	records := make(map[string]*history.AvailabilityRecord, len(result.ParticipantIdentities))
	for _, identity := range result.ParticipantIdentities {
		participant, ok := participantByID(result, identity.ParticipantID)
		if !ok {
			continue
		}
		record, err := r.Histories.Availability(ctx, history.AvailabilityRequest{
			AccountID:  identity.Player.CurrentAccountID,
			ChampionID: participant.ChampionID,
			Lane:       mapping[participant.ChampionID],
			SummonerSpells: []int{
				participant.Spell1ID, participant.Spell2ID,
			},
			Runes: []int{
				participant.Stats.Perk0, participant.Stats.Perk1, participant.Stats.Perk2,
				participant.Stats.Perk3, participant.Stats.Perk4, participant.Stats.Perk5,
			},
			MatchTime: result.GameCreation,
		})
		switch {
		case err == nil:
			records[strconv.Itoa(participant.ChampionID)] = record
		case errors.Is(err, staticdata.ErrMissingItems):
			r.Log.Warn().Int64("match_id", m.MatchID).Msg("missing static game data, histories not rebuildable")
			return nil
		default:
			return err
		}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := r.Matches.AttachHistories(ctx, m.MatchID, m.RegionID, raw); err != nil {
		return err
	}
	r.Log.Info().Int64("match_id", m.MatchID).Msg("rebuilt histories")
	return nil
}

// resolveVersion attaches the client version parsed out of the result.
func (r *Repairer) resolveVersion(ctx context.Context, m *store.Match, result *riot.MatchResult) error {
	version, err := r.Versions.EnsureVersion(ctx, result.GameVersion)
	if errors.Is(err, staticdata.ErrUnknownVersion) {
		r.Log.Warn().Int64("match_id", m.MatchID).Str("game_version", result.GameVersion).
			Msg("game version still unresolved")
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.Matches.AttachVersion(ctx, m.MatchID, m.RegionID, version.ID); err != nil {
		return err
	}
	r.Log.Info().Int64("match_id", m.MatchID).Str("semver", version.Semver).Msg("recovered game version")
	return nil
}

func participantByID(result *riot.MatchResult, participantID int) (riot.Participant, bool) {
	for _, p := range result.Participants {
		if p.ParticipantID == participantID {
			return p, true
		}
	}
	return riot.Participant{}, false
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/catalog"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/staticdata"
	"github.com/riftwatch/riftwatch/internal/store"
)

// StoreSource is the production MatchSource: match bodies come from the
// store when present and from the API otherwise, and everything fetched is
// persisted so the next extraction is free.
type StoreSource struct {
	Client   *riot.Client
	Store    *store.Store
	Versions VersionSource
	Region   store.Region
	Log      zerolog.Logger
}

// Matchlist fetches one weekly slice. A 404 means the window is empty and
// surfaces as riot.ErrNotFound.
func (s *StoreSource) Matchlist(ctx context.Context, accountID, beginTime, endTime int64) ([]riot.MatchReference, error) {
	ml, err := riot.Retry(ctx, riot.RetryPolicy{NotFound: riot.NotFoundEmpty},
		func(ctx context.Context) (*riot.Matchlist, error) {
			return s.Client.Matchlist(ctx, s.Region.Name, accountID, beginTime, endTime)
		})
	if err != nil {
		return nil, err
	}
	return ml.Matches, nil
}

// ResultAndTimeline returns the bodies for one historical match, claiming a
// row and backfilling whatever is missing. Concurrent extractors may race on
// the claim; the row's contents converge either way.
func (s *StoreSource) ResultAndTimeline(ctx context.Context, ref riot.MatchReference) (*riot.MatchResult, *riot.Timeline, error) {
	m, err := s.Store.Matches.Get(ctx, ref.GameID, s.Region.ID)
	if errors.Is(err, store.ErrNotFound) {
		if cerr := s.Store.Matches.Claim(ctx, ref.GameID, s.Region.ID); cerr != nil && !errors.Is(cerr, store.ErrMatchTaken) {
			return nil, nil, cerr
		}
		if m, err = s.Store.Matches.Get(ctx, ref.GameID, s.Region.ID); err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	fetchRegion := s.Region.Name
	if ref.PlatformID != "" {
		if name, rerr := catalog.RegionForPlatform(ref.PlatformID); rerr == nil {
			fetchRegion = name
		}
	}

	result, err := s.result(ctx, m, fetchRegion)
	if err != nil {
		return nil, nil, err
	}
	timeline, err := s.timeline(ctx, m, fetchRegion)
	if err != nil {
		return nil, nil, err
	}
	return result, timeline, nil
}

func (s *StoreSource) result(ctx context.Context, m *store.Match, fetchRegion string) (*riot.MatchResult, error) {
	if m.ResultJSON.Valid {
		var result riot.MatchResult
		if err := json.Unmarshal([]byte(m.ResultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("history: decode stored result for match %d: %w", m.MatchID, err)
		}
		return &result, nil
	}

	result, raw, err := s.Client.MatchResult(ctx, fetchRegion, m.MatchID)
	if err != nil {
		return nil, err
	}
	versionID := sql.NullInt64{}
	version, err := s.Versions.EnsureVersion(ctx, result.GameVersion)
	switch {
	case err == nil:
		versionID = sql.NullInt64{Int64: version.ID, Valid: true}
	case errors.Is(err, staticdata.ErrUnknownVersion):
		// Version stays unresolved; the repair sweep revisits it.
		s.Log.Warn().Int64("match_id", m.MatchID).Str("game_version", result.GameVersion).
			Msg("game version unresolved")
	default:
		return nil, err
	}
	if err := s.Store.Matches.AttachResult(ctx, m.MatchID, m.RegionID, versionID, result.GameDuration, raw); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StoreSource) timeline(ctx context.Context, m *store.Match, fetchRegion string) (*riot.Timeline, error) {
	if m.TimelineJSON.Valid {
		var timeline riot.Timeline
		if err := json.Unmarshal([]byte(m.TimelineJSON.String), &timeline); err != nil {
			return nil, fmt.Errorf("history: decode stored timeline for match %d: %w", m.MatchID, err)
		}
		return &timeline, nil
	}

	type fetched struct {
		timeline *riot.Timeline
		raw      []byte
	}
	f, err := riot.Retry(ctx, riot.RetryPolicy{Retries: 2},
		func(ctx context.Context) (fetched, error) {
			tl, raw, err := s.Client.MatchTimeline(ctx, fetchRegion, m.MatchID)
			return fetched{timeline: tl, raw: raw}, err
		})
	if err != nil {
		return nil, err
	}
	if err := s.Store.Matches.AttachTimeline(ctx, m.MatchID, m.RegionID, f.raw); err != nil {
		return nil, err
	}
	return f.timeline, nil
}

package repair

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/staticdata"
	"github.com/riftwatch/riftwatch/internal/store"
)

type fakeAPI struct {
	result      *riot.MatchResult
	resultErr   error
	timeline    *riot.Timeline
	timelineErr error
}

func (f *fakeAPI) MatchResult(context.Context, string, int64) (*riot.MatchResult, []byte, error) {
	if f.resultErr != nil {
		return nil, nil, f.resultErr
	}
	raw, _ := json.Marshal(f.result)
	return f.result, raw, nil
}

func (f *fakeAPI) MatchTimeline(context.Context, string, int64) (*riot.Timeline, []byte, error) {
	if f.timelineErr != nil {
		return nil, nil, f.timelineErr
	}
	raw, _ := json.Marshal(f.timeline)
	return f.timeline, raw, nil
}

type fakeMatches struct {
	match *store.Match
	rows  []store.IncompleteMatch

	timelineJSON    []byte
	resultJSON      []byte
	historiesJSON   []byte
	attachedVersion int64
}

func (f *fakeMatches) Get(context.Context, int64, int64) (*store.Match, error) {
	return f.match, nil
}

func (f *fakeMatches) Incomplete(context.Context, int64, string) ([]store.IncompleteMatch, error) {
	return f.rows, nil
}

func (f *fakeMatches) AttachResult(_ context.Context, _, _ int64, _ sql.NullInt64, _ int64, resultJSON []byte) error {
	f.resultJSON = resultJSON
	return nil
}

func (f *fakeMatches) AttachTimeline(_ context.Context, _, _ int64, timelineJSON []byte) error {
	f.timelineJSON = timelineJSON
	return nil
}

func (f *fakeMatches) AttachHistories(_ context.Context, _, _ int64, historiesJSON []byte) error {
	f.historiesJSON = historiesJSON
	return nil
}

func (f *fakeMatches) AttachVersion(_ context.Context, _, _, versionID int64) error {
	f.attachedVersion = versionID
	return nil
}

type fakeVersions struct {
	err error
}

func (f fakeVersions) EnsureVersion(context.Context, string) (*store.GameVersion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.GameVersion{ID: 9, Semver: "8.15.1"}, nil
}

type fakeAvailability struct {
	err      error
	requests []history.AvailabilityRequest
}

func (f *fakeAvailability) Availability(_ context.Context, req history.AvailabilityRequest) (*history.AvailabilityRecord, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &history.AvailabilityRecord{NumMatches: 12}, nil
}

func sampleResult() *riot.MatchResult {
	result := &riot.MatchResult{
		GameID:       501,
		GameCreation: 1_500_000_000_000,
		GameDuration: 1900,
		GameVersion:  "8.15.236.12",
	}
	for i := 1; i <= 10; i++ {
		team := 100
		if i > 5 {
			team = 200
		}
		p := riot.Participant{ParticipantID: i, TeamID: team, ChampionID: 200 + i, Spell1ID: 4, Spell2ID: 14}
		switch (i-1)%5 + 1 {
		case 1:
			p.Stats.TotalMinionsKilled = 65
		case 2:
			p.Spell2ID = 11
			p.Stats.NeutralMinionsKilled = 60
		case 3:
			p.Stats.TotalMinionsKilled = 70
		case 4:
			p.Stats.TotalMinionsKilled = 80
		case 5:
			p.Stats.TotalMinionsKilled = 10
		}
		result.Participants = append(result.Participants, p)
		result.ParticipantIdentities = append(result.ParticipantIdentities, riot.ParticipantIdentity{
			ParticipantID: i,
			Player:        riot.Player{CurrentAccountID: int64(100 + i)},
		})
	}
	return result
}

func storedMatch(withResult, withTimeline bool) *store.Match {
	m := &store.Match{MatchID: 501, RegionID: 1}
	if withResult {
		raw, _ := json.Marshal(sampleResult())
		m.ResultJSON = sql.NullString{String: string(raw), Valid: true}
	}
	if withTimeline {
		raw, _ := json.Marshal(&riot.Timeline{Frames: []riot.Frame{{}}})
		m.TimelineJSON = sql.NullString{String: string(raw), Valid: true}
	}
	return m
}

func newRepairer(api *fakeAPI, matches *fakeMatches, availability *fakeAvailability) *Repairer {
	return &Repairer{
		API:       api,
		Matches:   matches,
		Versions:  fakeVersions{},
		Histories: availability,
		Region:    store.Region{ID: 1, Name: "EUW"},
		Log:       zerolog.Nop(),
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
}

func TestRunRecoversTimeline(t *testing.T) {
	api := &fakeAPI{timeline: &riot.Timeline{Frames: []riot.Frame{{}}}}
	matches := &fakeMatches{
		match: storedMatch(true, false),
		rows:  []store.IncompleteMatch{{MatchID: 501, TimelineMissing: true}},
	}
	r := newRepairer(api, matches, &fakeAvailability{})

	require.NoError(t, r.Run(context.Background(), ""))
	assert.NotEmpty(t, matches.timelineJSON)
	assert.Empty(t, matches.historiesJSON, "histories were not flagged missing")
}

func TestRunResultFailureSkipsDependents(t *testing.T) {
	api := &fakeAPI{resultErr: &riot.APIError{StatusCode: 503}}
	matches := &fakeMatches{
		match: storedMatch(false, true),
		rows: []store.IncompleteMatch{{
			MatchID:        501,
			ResultMissing:  true,
			HistoryMissing: true,
			VersionMissing: true,
		}},
	}
	availability := &fakeAvailability{}
	r := newRepairer(api, matches, availability)

	require.NoError(t, r.Run(context.Background(), ""), "a stubborn match is left for the next sweep")
	assert.Empty(t, availability.requests)
	assert.Empty(t, matches.historiesJSON)
	assert.Zero(t, matches.attachedVersion)
}

func TestRunRebuildsHistories(t *testing.T) {
	matches := &fakeMatches{
		match: storedMatch(true, true),
		rows:  []store.IncompleteMatch{{MatchID: 501, HistoryMissing: true}},
	}
	availability := &fakeAvailability{}
	r := newRepairer(&fakeAPI{}, matches, availability)

	require.NoError(t, r.Run(context.Background(), ""))
	require.Len(t, availability.requests, 10)
	assert.Equal(t, int64(101), availability.requests[0].AccountID)
	assert.ElementsMatch(t, []int{4, 14}, availability.requests[0].SummonerSpells)

	var records map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(matches.historiesJSON, &records))
	assert.Len(t, records, 10)
	assert.Contains(t, records, "201")
}

func TestRunSkipsHistoriesWithoutTimeline(t *testing.T) {
	api := &fakeAPI{timelineErr: &riot.APIError{StatusCode: 503}}
	matches := &fakeMatches{
		match: storedMatch(true, false),
		rows:  []store.IncompleteMatch{{MatchID: 501, TimelineMissing: true, HistoryMissing: true}},
	}
	availability := &fakeAvailability{}
	r := newRepairer(api, matches, availability)

	require.NoError(t, r.Run(context.Background(), ""))
	assert.Empty(t, availability.requests)
	assert.Empty(t, matches.historiesJSON)
}

func TestRunResolvesVersion(t *testing.T) {
	matches := &fakeMatches{
		match: storedMatch(true, true),
		rows:  []store.IncompleteMatch{{MatchID: 501, VersionMissing: true}},
	}
	r := newRepairer(&fakeAPI{}, matches, &fakeAvailability{})

	require.NoError(t, r.Run(context.Background(), ""))
	assert.Equal(t, int64(9), matches.attachedVersion)
}

func TestRunUnknownVersionLeavesRow(t *testing.T) {
	matches := &fakeMatches{
		match: storedMatch(true, true),
		rows:  []store.IncompleteMatch{{MatchID: 501, VersionMissing: true}},
	}
	r := newRepairer(&fakeAPI{}, matches, &fakeAvailability{})
	r.Versions = fakeVersions{err: staticdata.ErrUnknownVersion}

	require.NoError(t, r.Run(context.Background(), ""))
	assert.Zero(t, matches.attachedVersion)
}

func TestRunFatalRateLimitStops(t *testing.T) {
	fatal := &riot.APIError{
		StatusCode: 429,
		Header:     map[string][]string{"X-Rate-Limit-Type": {"method"}},
	}
	matches := &fakeMatches{
		match: storedMatch(true, true),
		rows:  []store.IncompleteMatch{{MatchID: 501, HistoryMissing: true}},
	}
	r := newRepairer(&fakeAPI{}, matches, &fakeAvailability{err: fatal})

	err := r.Run(context.Background(), "")
	var apiErr *riot.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
}

func TestRunMissingStaticDataSkipsHistories(t *testing.T) {
	matches := &fakeMatches{
		match: storedMatch(true, true),
		rows:  []store.IncompleteMatch{{MatchID: 501, HistoryMissing: true}},
	}
	r := newRepairer(&fakeAPI{}, matches, &fakeAvailability{err: staticdata.ErrMissingItems})

	require.NoError(t, r.Run(context.Background(), ""))
	assert.Empty(t, matches.historiesJSON)
}

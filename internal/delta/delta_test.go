package delta

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/store"
)

type fakeMatches struct {
	byTier map[string][]store.Match
	calls  []string
}

func (f *fakeMatches) ByVersionTier(_ context.Context, _ int64, _, tierAvg string, _, _ int) ([]store.Match, error) {
	f.calls = append(f.calls, tierAvg)
	return f.byTier[tierAvg], nil
}

type fakeSource struct {
	weeks  [][]riot.MatchReference
	calls  int
	err    error
	bodies map[int64]*riot.MatchResult
}

func (f *fakeSource) Matchlist(context.Context, int64, int64, int64) ([]riot.MatchReference, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.weeks) {
		return nil, riot.ErrNotFound
	}
	return f.weeks[i], nil
}

func (f *fakeSource) ResultAndTimeline(_ context.Context, ref riot.MatchReference) (*riot.MatchResult, *riot.Timeline, error) {
	return f.bodies[ref.GameID], nil, nil
}

// referenceMatch is the stored match whose participants get aggregated. One
// focal identity playing champion 201 top lane.
func referenceMatch() store.Match {
	result := &riot.MatchResult{
		GameID:       900,
		GameCreation: 1_500_000_000_000,
		Participants: []riot.Participant{
			{
				ParticipantID: 1,
				ChampionID:    201,
				Timeline:      riot.ParticipantTimeline{Lane: "TOP", Role: "SOLO"},
			},
		},
		ParticipantIdentities: []riot.ParticipantIdentity{
			{ParticipantID: 1, Player: riot.Player{AccountID: 55, SummonerName: "alice"}},
		},
	}
	raw, _ := json.Marshal(result)
	return store.Match{
		MatchID:    900,
		RegionID:   1,
		ResultJSON: sql.NullString{String: string(raw), Valid: true},
	}
}

// historicalGame yields a ref and body where champion 201 scored the given
// kills in a top solo game.
func historicalGame(gameID int64, kills float64) (riot.MatchReference, *riot.MatchResult) {
	ref := riot.MatchReference{GameID: gameID, Champion: 201, Lane: "TOP", Role: "SOLO"}
	body := &riot.MatchResult{
		GameID: gameID,
		Participants: []riot.Participant{
			{ParticipantID: 3, ChampionID: 201, Stats: riot.ParticipantStats{Kills: kills, Deaths: 1, Assists: 2}},
		},
	}
	return ref, body
}

func newScanner(matches *fakeMatches, source *fakeSource) *Scanner {
	return &Scanner{
		Matches: matches,
		Source:  source,
		Region:  store.Region{ID: 1, Name: "EUW"},
		Semver:  "8.15.1",
		Log:     zerolog.Nop(),
	}
}

func TestRunRequiresSemver(t *testing.T) {
	s := newScanner(&fakeMatches{}, &fakeSource{})
	s.Semver = ""
	_, err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestRunBuildsRollingAverages(t *testing.T) {
	matches := &fakeMatches{byTier: map[string][]store.Match{"MASTER": {referenceMatch()}}}
	source := &fakeSource{bodies: map[int64]*riot.MatchResult{}}
	var week []riot.MatchReference
	for i := int64(1); i <= 5; i++ {
		ref, body := historicalGame(i, float64(i))
		week = append(week, ref)
		source.bodies[i] = body
	}
	source.weeks = [][]riot.MatchReference{week}
	s := newScanner(matches, source)
	s.TotalMatches = 1

	aggregates, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, aggregates, 1)

	entries := aggregates[0].LaneRoles["TOP_SOLO"]
	require.Len(t, entries, 5)
	assert.Nil(t, entries[0].Delta2)
	assert.Nil(t, entries[1].Delta2)
	require.NotNil(t, entries[2].Delta2)
	assert.Equal(t, 2.5, entries[2].Delta2.Kills, "games 2 and 3 average to 2.5 kills")
	require.NotNil(t, entries[4].Delta4)
	assert.Equal(t, 3.5, entries[4].Delta4.Kills, "games 2 through 5 average to 3.5 kills")
	assert.Equal(t, 1.0, entries[4].Delta4.Deaths)
}

func TestRunSkipsOtherChampions(t *testing.T) {
	matches := &fakeMatches{byTier: map[string][]store.Match{"MASTER": {referenceMatch()}}}
	ref, body := historicalGame(1, 3)
	other := riot.MatchReference{GameID: 2, Champion: 999, Lane: "MID", Role: "SOLO"}
	source := &fakeSource{
		weeks:  [][]riot.MatchReference{{ref, other}},
		bodies: map[int64]*riot.MatchResult{1: body},
	}
	s := newScanner(matches, source)
	s.TotalMatches = 1

	aggregates, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Len(t, aggregates[0].LaneRoles["TOP_SOLO"], 1)
	assert.NotContains(t, aggregates[0].LaneRoles, "MID_SOLO")
}

func TestRunTotalParsedCap(t *testing.T) {
	matches := &fakeMatches{byTier: map[string][]store.Match{"MASTER": {referenceMatch()}}}
	source := &fakeSource{bodies: map[int64]*riot.MatchResult{}}
	var week []riot.MatchReference
	for i := int64(1); i <= 5; i++ {
		ref, body := historicalGame(i, float64(i))
		week = append(week, ref)
		source.bodies[i] = body
	}
	source.weeks = [][]riot.MatchReference{week}
	s := newScanner(matches, source)
	s.TotalMatches = 1
	s.TotalParsed = 2

	aggregates, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Len(t, aggregates[0].LaneRoles["TOP_SOLO"], 2)
}

func TestRunRateLimitKeepsPartial(t *testing.T) {
	matches := &fakeMatches{byTier: map[string][]store.Match{"MASTER": {referenceMatch()}}}
	source := &fakeSource{err: &riot.APIError{StatusCode: 429}}
	s := newScanner(matches, source)
	s.TotalMatches = 1

	aggregates, err := s.Run(context.Background())
	require.NoError(t, err, "a throttled scan keeps what it has")
	assert.Empty(t, aggregates)
}

func TestSelectMatchesStopsAtWindow(t *testing.T) {
	matches := &fakeMatches{byTier: map[string][]store.Match{
		"MASTER":     {referenceMatch(), referenceMatch()},
		"CHALLENGER": {referenceMatch()},
	}}
	s := newScanner(matches, &fakeSource{})
	s.TotalMatches = 2

	selected, err := s.selectMatches(context.Background())
	require.NoError(t, err)
	assert.Len(t, selected, 2)
	assert.Equal(t, []string{"MASTER"}, matches.calls, "the window filled before the second tier")
}

func TestAggregateMarshalsAsPair(t *testing.T) {
	a := Aggregate{
		Identifier: "match 900 statistics for alice on champ 201 TOP_SOLO",
		LaneRoles:  map[string][]Entry{"TOP_SOLO": {{Match: KDA{Kills: 3}}}},
	}
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var pair []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &pair))
	require.Len(t, pair, 2)
	var id string
	require.NoError(t, json.Unmarshal(pair[0], &id))
	assert.Contains(t, id, "champ 201")
}

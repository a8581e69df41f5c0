package history

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/riftwatch/internal/fights"
	"github.com/riftwatch/riftwatch/internal/lanes"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/store"
)

type matchBody struct {
	result   *riot.MatchResult
	timeline *riot.Timeline
}

type fakeSource struct {
	weeks  [][]riot.MatchReference
	calls  int
	bodies map[int64]matchBody
}

func (f *fakeSource) Matchlist(_ context.Context, _, _, _ int64) ([]riot.MatchReference, error) {
	i := f.calls
	f.calls++
	if i >= len(f.weeks) || len(f.weeks[i]) == 0 {
		return nil, riot.ErrNotFound
	}
	return f.weeks[i], nil
}

func (f *fakeSource) ResultAndTimeline(_ context.Context, ref riot.MatchReference) (*riot.MatchResult, *riot.Timeline, error) {
	b := f.bodies[ref.GameID]
	return b.result, b.timeline, nil
}

type fakeCatalogs struct{ catalog *fights.Catalog }

func (f *fakeCatalogs) CatalogFor(context.Context, string) (*fights.Catalog, error) {
	return f.catalog, nil
}

type fakeVersions struct{}

func (fakeVersions) EnsureVersion(context.Context, string) (*store.GameVersion, error) {
	return &store.GameVersion{ID: 1, Semver: "8.15.1"}, nil
}

// testGame builds a conventional 10-player match where champion 101 (the
// focal player, participant 1) plays TOP for team 100.
func testGame(gameID, duration int64, win bool) (riot.MatchReference, matchBody) {
	result := &riot.MatchResult{
		GameID:       gameID,
		GameDuration: duration,
		GameVersion:  "8.15.236.12",
	}
	for i := 1; i <= 10; i++ {
		team := 100
		if i > 5 {
			team = 200
		}
		p := riot.Participant{
			ParticipantID: i,
			TeamID:        team,
			ChampionID:    i + 100,
			Spell1ID:      4,
			Spell2ID:      14,
		}
		switch (i-1)%5 + 1 {
		case 1: // top
			p.Stats.TotalMinionsKilled = 65
		case 2: // jungle
			p.Spell2ID = lanes.SmiteSpellID
			p.Stats.NeutralMinionsKilled = 60
			p.Stats.TotalMinionsKilled = 20
		case 3: // mid
			p.Stats.TotalMinionsKilled = 70
		case 4: // bottom
			p.Stats.TotalMinionsKilled = 80
		case 5: // support
			p.Stats.TotalMinionsKilled = 10
		}
		if i == 1 {
			p.Stats.Win = win
			p.Stats.Kills = 4
			p.Stats.Perk0, p.Stats.Perk1, p.Stats.Perk2 = 8005, 9111, 9104
			p.Stats.Perk3, p.Stats.Perk4, p.Stats.Perk5 = 8014, 8304, 8345
		}
		result.Participants = append(result.Participants, p)
	}

	positions := map[int]riot.Position{}
	for _, base := range []int{1, 6} {
		positions[base+0] = riot.Position{X: 2000, Y: 12000}
		positions[base+1] = riot.Position{X: 7000, Y: 7000}
		positions[base+2] = riot.Position{X: 7400, Y: 7400}
		positions[base+3] = riot.Position{X: 12000, Y: 2000}
		positions[base+4] = riot.Position{X: 12200, Y: 2100}
	}
	frames := make([]riot.Frame, 7)
	for i := range frames {
		frames[i].ParticipantFrames = map[string]riot.ParticipantFrame{}
		for id, pos := range positions {
			p := pos
			frames[i].ParticipantFrames[strconv.Itoa(id)] = riot.ParticipantFrame{
				ParticipantID: id,
				Position:      &p,
			}
		}
	}

	ref := riot.MatchReference{GameID: gameID, PlatformID: "EUW1", Champion: 101}
	return ref, matchBody{result: result, timeline: &riot.Timeline{Frames: frames}}
}

func testExtractor(src *fakeSource) *Extractor {
	catalog, _ := fights.NewCatalog([]byte(`{"data":{}}`))
	return &Extractor{
		Source:   src,
		Catalogs: &fakeCatalogs{catalog: catalog},
		Versions: fakeVersions{},
		Log:      zerolog.Nop(),
	}
}

func sourceWith(games ...struct {
	ref  riot.MatchReference
	body matchBody
}) *fakeSource {
	src := &fakeSource{bodies: map[int64]matchBody{}}
	var week []riot.MatchReference
	for _, g := range games {
		week = append(week, g.ref)
		src.bodies[g.ref.GameID] = g.body
	}
	src.weeks = [][]riot.MatchReference{week}
	return src
}

type game = struct {
	ref  riot.MatchReference
	body matchBody
}

func TestStatsExcludesRemakes(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	g2ref, g2 := testGame(2, 200, true) // remake
	src := sourceWith(game{g1ref, g1}, game{g2ref, g2})

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.NumGames, "remakes are not played games")
	assert.Equal(t, 1, rec.NumGamesInLane)
}

func TestStatsWinLossMomentum(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	g2ref, g2 := testGame(2, 1800, true)
	g3ref, g3 := testGame(3, 1800, true)
	src := sourceWith(game{g1ref, g1}, game{g2ref, g2}, game{g3ref, g3})

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PreviousGameWon)
	assert.Equal(t, 2, rec.ConsecutiveWins, "first game seeds the streak, the rest extend it")
	assert.Equal(t, 0, rec.ConsecutiveLosses)
}

func TestStatsLanePriorityAndAverages(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	g2ref, g2 := testGame(2, 1800, false)
	src := sourceWith(game{g1ref, g1}, game{g2ref, g2})

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "primary", rec.LanePriority)
	assert.Equal(t, 4.0, rec.TotalAverages["kills"])
	assert.Equal(t, 4.0, rec.LaneAverages["kills"])
	assert.Equal(t, 0.0, rec.TotalAverages["deaths"])
}

func TestStatsAutofillWhenLaneNeverPlayed(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	src := sourceWith(game{g1ref, g1})

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Support, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	// One TOP game: TOP is primary, JUNGLE wins the all-zero secondary tie.
	assert.Equal(t, "autofill", rec.LanePriority)
	assert.Equal(t, 0, rec.NumGamesInLane)
	assert.Equal(t, 0.0, rec.LaneAverages["kills"], "no in-lane samples")
}

func TestStatsEmptyLookback(t *testing.T) {
	src := &fakeSource{bodies: map[int64]matchBody{}}

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.NumGames)
	assert.Equal(t, 0, rec.PreviousGameWon)
	assert.Equal(t, 0.0, rec.SoloAggro)
}

func TestStatsCapsProcessedGames(t *testing.T) {
	src := &fakeSource{bodies: map[int64]matchBody{}}
	var week []riot.MatchReference
	for i := int64(1); i <= 5; i++ {
		ref, body := testGame(i, 1800, true)
		week = append(week, ref)
		src.bodies[i] = body
	}
	src.weeks = [][]riot.MatchReference{week}

	e := testExtractor(src)
	e.MaxGames = 3
	rec, err := e.Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rec.NumGames, "total activity keeps counting past the cap")
	assert.Equal(t, 3, rec.NumGamesInLane, "only capped games are processed")
}

func TestRecordMarshalsFlat(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	src := sourceWith(game{g1ref, g1})

	rec, err := testExtractor(src).Stats(context.Background(), Request{
		AccountID: 7, ChampionID: 101, Lane: lanes.Top, MatchTime: 1_500_000_000_000,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flat))

	assert.Equal(t, "primary", flat["lane_priority"])
	assert.Equal(t, 4.0, flat["total_kills"])
	assert.Equal(t, 4.0, flat["lane_kills"])
	assert.Contains(t, flat, "total_gold_per_min_0_to_10")
	assert.Contains(t, flat, "lane_xp_gained_diff_per_min_30_to_40")
	assert.Contains(t, flat, "consecutive_losses")
	assert.NotContains(t, flat, "TotalAverages")
}

func TestAvailabilityCounts(t *testing.T) {
	g1ref, g1 := testGame(1, 1800, true)
	g2ref, g2 := testGame(2, 200, true) // remake, only counts as a match
	src := sourceWith(game{g1ref, g1}, game{g2ref, g2})

	rec, err := testExtractor(src).Availability(context.Background(), AvailabilityRequest{
		AccountID:      7,
		ChampionID:     101,
		Lane:           lanes.Top,
		SummonerSpells: []int{14, 4},
		Runes:          []int{8005, 9111, 9104, 8014, 8304, 8345},
		MatchTime:      1_500_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.NumMatches)
	assert.Equal(t, 2, rec.NumMatchesAsChampion)
	assert.Equal(t, 1, rec.NumMatchesInRole, "remakes do not qualify")
	assert.Equal(t, 1, rec.NumMatchesWithSummonerSpells, "spell sets compare unordered")
	assert.Equal(t, 1, rec.NumMatchesWithRunes)
}

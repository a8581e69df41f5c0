// Package history computes behavioural features from a player's recent
// matches: lane habits, win/loss momentum, fight aggressiveness and averaged
// post-game statistics over a bounded lookback window.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/fights"
	"github.com/riftwatch/riftwatch/internal/lanes"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/store"
)

const weekMillis = 7 * 24 * 60 * 60 * 1000

// MatchSource yields match references and cached-or-fetched match bodies.
type MatchSource interface {
	// Matchlist returns the ranked matches of an account within
	// [beginTime, endTime). riot.ErrNotFound when the window is empty.
	Matchlist(ctx context.Context, accountID, beginTime, endTime int64) ([]riot.MatchReference, error)
	// ResultAndTimeline returns the match's result and timeline, reusing
	// stored bodies where available.
	ResultAndTimeline(ctx context.Context, ref riot.MatchReference) (*riot.MatchResult, *riot.Timeline, error)
}

// CatalogSource resolves item catalogues per client version.
type CatalogSource interface {
	CatalogFor(ctx context.Context, semver string) (*fights.Catalog, error)
}

// VersionSource resolves match version strings to known client versions.
type VersionSource interface {
	EnsureVersion(ctx context.Context, gameVersion string) (*store.GameVersion, error)
}

// Extractor walks a player's lookback window. Zero MaxWeeks/MaxGames mean
// the defaults of 3 weeks and 40 games.
type Extractor struct {
	Source   MatchSource
	Catalogs CatalogSource
	Versions VersionSource
	MaxWeeks int
	MaxGames int
	Log      zerolog.Logger
}

// Request identifies whose history to extract, relative to one reference
// match. The champion locates the player inside historical results, since
// account ids are not stable across the years.
type Request struct {
	AccountID  int64
	ChampionID int
	Lane       lanes.Lane
	MatchTime  int64
}

// Record is the extracted feature set. It marshals flat: the fixed features
// by name, then total_<stat> and lane_<stat> averages.
type Record struct {
	LanePriority      string
	SoloRatio         float64
	SoloAggro         float64
	SkirmishRatio     float64
	SkirmishAggro     float64
	TeamRatio         float64
	TeamAggro         float64
	NumGames          int
	NumGamesInLane    int
	PreviousGameWon   int
	ConsecutiveWins   int
	ConsecutiveLosses int
	TotalAverages     map[string]float64
	LaneAverages      map[string]float64
}

func (r *Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, 12+len(r.TotalAverages)+len(r.LaneAverages))
	flat["lane_priority"] = r.LanePriority
	flat["solo_ratio"] = r.SoloRatio
	flat["solo_aggro"] = r.SoloAggro
	flat["skirmish_ratio"] = r.SkirmishRatio
	flat["skirmish_aggro"] = r.SkirmishAggro
	flat["team_ratio"] = r.TeamRatio
	flat["team_aggro"] = r.TeamAggro
	flat["num_games"] = r.NumGames
	flat["num_games_in_current_lane"] = r.NumGamesInLane
	flat["previous_game_won"] = r.PreviousGameWon
	flat["consecutive_wins"] = r.ConsecutiveWins
	flat["consecutive_losses"] = r.ConsecutiveLosses
	for name, avg := range r.TotalAverages {
		flat["total_"+name] = avg
	}
	for name, avg := range r.LaneAverages {
		flat["lane_"+name] = avg
	}
	return json.Marshal(flat)
}

func (e *Extractor) maxWeeks() int {
	if e.MaxWeeks > 0 {
		return e.MaxWeeks
	}
	return 3
}

func (e *Extractor) maxGames() int {
	if e.MaxGames > 0 {
		return e.MaxGames
	}
	return 40
}

// accumulator collects per-rule samples for averaging.
type accumulator struct {
	sums   map[string]float64
	counts map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{sums: make(map[string]float64), counts: make(map[string]int)}
}

func (a *accumulator) add(values map[string]float64) {
	for name, v := range values {
		a.sums[name] += v
		a.counts[name]++
	}
}

func (a *accumulator) averages(rules []statRule) map[string]float64 {
	avgs := make(map[string]float64, len(rules))
	for _, r := range rules {
		if n := a.counts[r.name]; n > 0 {
			avgs[r.name] = a.sums[r.name] / float64(n)
		} else {
			avgs[r.name] = 0
		}
	}
	return avgs
}

func extract(rules []statRule, p riot.Participant) map[string]float64 {
	values := make(map[string]float64, len(rules))
	for _, r := range rules {
		values[r.name] = r.fn(p)
	}
	return values
}

var laneOrder = []lanes.Lane{lanes.Top, lanes.Jungle, lanes.Mid, lanes.Bottom, lanes.Support}

// Stats extracts the full feature record. Fatal rate-limit errors and
// missing static data propagate; an empty week is skipped silently and other
// matchlist errors only cost that week.
func (e *Extractor) Stats(ctx context.Context, req Request) (*Record, error) {
	rules := statRules()
	totals := newAccumulator()
	inLane := newAccumulator()
	laneTally := make(map[lanes.Lane]int)
	var fightsPerGame [][]fights.Fight

	numGames := 0
	numGamesInLane := 0
	consecutiveWins := 0
	consecutiveLosses := 0
	previousGameWon := 0
	var winning *bool

	err := e.walk(ctx, req.AccountID, req.MatchTime, func(ref riot.MatchReference) error {
		numGames++
		if numGames > e.maxGames() {
			// Keep counting total activity past the processing cap.
			return nil
		}
		result, timeline, err := e.Source.ResultAndTimeline(ctx, ref)
		if err != nil {
			return err
		}
		if result.GameDuration < 300 {
			// Remake, does not count as a played game.
			numGames--
			return nil
		}

		laneThen, ok := lanes.Assign(result, timeline)[ref.Champion]
		if !ok {
			return nil
		}
		if laneThen == req.Lane {
			numGamesInLane++
		}
		laneTally[laneThen]++

		version, err := e.Versions.EnsureVersion(ctx, result.GameVersion)
		if err != nil {
			return err
		}
		catalog, err := e.Catalogs.CatalogFor(ctx, version.Semver)
		if err != nil {
			return err
		}
		participant, ok := findParticipant(result, ref.Champion)
		if !ok {
			return nil
		}

		gameFights, err := fights.Cluster(result, timeline, catalog, participant.ParticipantID)
		if err != nil {
			return err
		}
		fightsPerGame = append(fightsPerGame, gameFights)

		values := extract(rules, participant)
		totals.add(values)
		if laneThen == req.Lane {
			inLane.add(values)
		}

		victory := participant.Stats.Win
		if previousGameWon == 0 {
			if victory {
				previousGameWon = 1
			} else {
				previousGameWon = -1
			}
		}
		switch {
		case winning == nil:
			winning = &victory
		case *winning:
			if victory {
				consecutiveWins++
			} else {
				f := false
				winning = &f
				consecutiveWins = 0
			}
		default:
			if !victory {
				consecutiveLosses++
			} else {
				tr := true
				winning = &tr
				consecutiveLosses = 0
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	primary, secondary := rankLanes(laneTally)
	record := &Record{
		LanePriority:      lanePriority(req.Lane, primary, secondary),
		NumGames:          numGames,
		NumGamesInLane:    numGamesInLane,
		PreviousGameWon:   previousGameWon,
		ConsecutiveWins:   consecutiveWins,
		ConsecutiveLosses: consecutiveLosses,
		TotalAverages:     totals.averages(rules),
		LaneAverages:      inLane.averages(rules),
	}
	record.SoloRatio, record.SoloAggro,
		record.SkirmishRatio, record.SkirmishAggro,
		record.TeamRatio, record.TeamAggro = fightTendencies(fightsPerGame)
	return record, nil
}

// walk iterates the weekly matchlist slices, invoking visit per reference.
func (e *Extractor) walk(ctx context.Context, accountID, matchTime int64, visit func(riot.MatchReference) error) error {
	for week := 0; week < e.maxWeeks(); week++ {
		end := matchTime - 1000 - int64(week)*weekMillis
		begin := end - weekMillis
		refs, err := e.Source.Matchlist(ctx, accountID, begin, end)
		if errors.Is(err, riot.ErrNotFound) {
			continue
		}
		if err != nil {
			if riot.IsStatus(err, http.StatusTooManyRequests) {
				return err
			}
			e.Log.Warn().Err(err).Int("weeks_back", week).Msg("matchlist slice failed, skipping week")
			continue
		}
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := visit(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func findParticipant(result *riot.MatchResult, championID int) (riot.Participant, bool) {
	for _, p := range result.Participants {
		if p.ChampionID == championID {
			return p, true
		}
	}
	return riot.Participant{}, false
}

// rankLanes returns the most and second-most played lanes, ties resolving in
// the canonical lane order.
func rankLanes(tally map[lanes.Lane]int) (primary, secondary lanes.Lane) {
	best := -1
	for _, lane := range laneOrder {
		if tally[lane] > best {
			primary, best = lane, tally[lane]
		}
	}
	best = -1
	for _, lane := range laneOrder {
		if lane == primary {
			continue
		}
		if tally[lane] > best {
			secondary, best = lane, tally[lane]
		}
	}
	return primary, secondary
}

func lanePriority(current, primary, secondary lanes.Lane) string {
	switch current {
	case primary:
		return "primary"
	case secondary:
		return "secondary"
	default:
		return "autofill"
	}
}

// fightTendencies classifies every fight by scale and scores the outcomes.
// Ratio is net wins per game, aggro is fights per game.
func fightTendencies(fightsPerGame [][]fights.Fight) (soloRatio, soloAggro, skirmishRatio, skirmishAggro, teamRatio, teamAggro float64) {
	n := len(fightsPerGame)
	if n == 0 {
		return
	}
	type tally struct{ wins, neutral, losses int }
	var solo, skirmish, team tally

	for _, gameFights := range fightsPerGame {
		for _, f := range gameFights {
			outcome := countIn(f.Victims, f.Enemies) - countIn(f.Victims, f.Allies)
			var t *tally
			switch {
			case len(f.Allies) == 1:
				t = &solo
			case len(f.Allies) < 4:
				t = &skirmish
			default:
				t = &team
			}
			switch {
			case outcome > 0:
				t.wins++
			case outcome == 0:
				t.neutral++
			default:
				t.losses++
			}
		}
	}

	games := float64(n)
	soloRatio = float64(solo.wins-solo.losses) / games
	soloAggro = float64(solo.wins+solo.neutral+solo.losses) / games
	skirmishRatio = float64(skirmish.wins-skirmish.losses) / games
	skirmishAggro = float64(skirmish.wins+skirmish.neutral+skirmish.losses) / games
	teamRatio = float64(team.wins-team.losses) / games
	teamAggro = float64(team.wins+team.neutral+team.losses) / games
	return
}

func countIn(victims, side []int) int {
	n := 0
	for _, v := range victims {
		for _, s := range side {
			if v == s {
				n++
				break
			}
		}
	}
	return n
}

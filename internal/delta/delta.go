// Package delta builds an offline dataset of recurrent kill/death/assist
// tendencies: for every participant of stored high-tier matches, it walks
// their preceding games per lane-role and computes rolling averages over the
// last 2, 3 and 4 games.
package delta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/store"
)

const lookbackWeeks = 3

const weekMillis = 7 * 24 * 60 * 60 * 1000

// MatchStore pages through stored matches by version and tier.
type MatchStore interface {
	ByVersionTier(ctx context.Context, regionID int64, semver, tierAvg string, offset, limit int) ([]store.Match, error)
}

// KDA is one game's headline combat stats.
type KDA struct {
	Kills   float64 `json:"kills"`
	Deaths  float64 `json:"deaths"`
	Assists float64 `json:"assists"`
}

// Entry pairs one historical game with the rolling averages of the games
// leading up to it. A delta is present once enough games precede the entry.
type Entry struct {
	Match  KDA  `json:"match"`
	Delta2 *KDA `json:"delta2,omitempty"`
	Delta3 *KDA `json:"delta3,omitempty"`
	Delta4 *KDA `json:"delta4,omitempty"`
}

// Aggregate is one participant's dataset row. It marshals as a two-element
// array of identifier and per-lane-role entries, which is the shape the
// downstream analysis notebooks consume.
type Aggregate struct {
	Identifier string
	LaneRoles  map[string][]Entry
}

func (a Aggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.Identifier, a.LaneRoles})
}

// Scanner drives one dataset build. Zero TotalMatches means the default of
// 2; TotalParsed caps how many historical games one participant contributes,
// zero meaning no cap.
type Scanner struct {
	Matches      MatchStore
	Source       history.MatchSource
	Region       store.Region
	Tiers        []string
	Semver       string
	StartIndex   int
	TotalMatches int
	TotalParsed  int
	Log          zerolog.Logger
}

func (s *Scanner) tiers() []string {
	if len(s.Tiers) > 0 {
		return s.Tiers
	}
	return []string{"MASTER", "CHALLENGER"}
}

func (s *Scanner) totalMatches() int {
	if s.TotalMatches > 0 {
		return s.TotalMatches
	}
	return 2
}

// Run scans the selected matches and aggregates every participant. A 429
// from the vendor ends the scan early with whatever was collected, since an
// offline dataset build has no business fighting for quota.
func (s *Scanner) Run(ctx context.Context) ([]Aggregate, error) {
	if s.Semver == "" {
		return nil, errors.New("delta: semver is required")
	}

	matches, err := s.selectMatches(ctx)
	if err != nil {
		return nil, err
	}
	s.Log.Info().Int("matches", len(matches)).Str("semver", s.Semver).Msg("building delta dataset")

	var aggregates []Aggregate
	for i, m := range matches {
		if err := ctx.Err(); err != nil {
			return aggregates, err
		}
		var result riot.MatchResult
		if err := json.Unmarshal([]byte(m.ResultJSON.String), &result); err != nil {
			s.Log.Warn().Err(err).Int64("match_id", m.MatchID).Msg("undecodable stored result")
			continue
		}

		for _, identity := range result.ParticipantIdentities {
			participant, ok := participantByID(&result, identity.ParticipantID)
			if !ok {
				continue
			}
			aggregate, stop := s.aggregateParticipant(ctx, &result, identity, participant)
			if aggregate != nil {
				aggregates = append(aggregates, *aggregate)
			}
			if stop {
				s.Log.Warn().Msg("rate limited, keeping the partial dataset")
				return aggregates, nil
			}
		}
		s.Log.Info().Int("done", i+1).Int("of", len(matches)).Msg("matches processed")
	}
	return aggregates, nil
}

// selectMatches pages each target tier separately and truncates to the
// requested window.
func (s *Scanner) selectMatches(ctx context.Context) ([]store.Match, error) {
	var matches []store.Match
	for _, tier := range s.tiers() {
		page, err := s.Matches.ByVersionTier(ctx, s.Region.ID, s.Semver, tier, s.StartIndex, s.totalMatches())
		if err != nil {
			return nil, err
		}
		matches = append(matches, page...)
		if len(matches) >= s.totalMatches() {
			return matches[:s.totalMatches()], nil
		}
	}
	return matches, nil
}

// aggregateParticipant walks one participant's lookback window and groups
// their games by the lane-role label of the matchlist reference. The second
// return reports a vendor rate limit, which ends the whole scan.
func (s *Scanner) aggregateParticipant(ctx context.Context, result *riot.MatchResult, identity riot.ParticipantIdentity, participant riot.Participant) (*Aggregate, bool) {
	// Offset by a second so the reference match itself is excluded.
	msThen := result.GameCreation - 1000
	statistics := make(map[string][]KDA)
	numParsed := 0
	rateLimited := false

walk:
	for week := 0; week < lookbackWeeks; week++ {
		end := msThen - int64(week)*weekMillis
		begin := end - weekMillis
		refs, err := s.Source.Matchlist(ctx, identity.Player.AccountID, begin, end)
		if err != nil {
			if riot.IsStatus(err, http.StatusTooManyRequests) {
				rateLimited = true
			}
			break
		}
		for _, ref := range refs {
			if ref.Champion != participant.ChampionID {
				continue
			}
			refResult, _, err := s.Source.ResultAndTimeline(ctx, ref)
			if err != nil {
				if riot.IsStatus(err, http.StatusTooManyRequests) {
					rateLimited = true
					break walk
				}
				s.Log.Warn().Err(err).Int64("game_id", ref.GameID).Msg("historical match unavailable")
				continue
			}
			p, ok := participantByChampion(refResult, ref.Champion)
			if !ok {
				continue
			}
			laneRole := fmt.Sprintf("%s_%s", ref.Lane, ref.Role)
			statistics[laneRole] = append(statistics[laneRole], KDA{
				Kills:   p.Stats.Kills,
				Deaths:  p.Stats.Deaths,
				Assists: p.Stats.Assists,
			})
			numParsed++
			if s.TotalParsed > 0 && numParsed >= s.TotalParsed {
				break walk
			}
		}
	}

	if len(statistics) == 0 {
		return nil, rateLimited
	}
	aggregate := &Aggregate{
		Identifier: fmt.Sprintf("match %d statistics for %s on champ %d %s_%s",
			result.GameID, identity.Player.SummonerName, participant.ChampionID,
			participant.Timeline.Lane, participant.Timeline.Role),
		LaneRoles: make(map[string][]Entry, len(statistics)),
	}
	for laneRole, games := range statistics {
		aggregate.LaneRoles[laneRole] = rollups(games)
	}
	return aggregate, rateLimited
}

// rollups decorates every game with the rolling averages of the window
// ending at it. A window of n only appears once n+1 games precede it, so the
// first entries carry fewer aggregates.
func rollups(games []KDA) []Entry {
	entries := make([]Entry, 0, len(games))
	for idx, game := range games {
		entry := Entry{Match: game}
		if idx >= 2 {
			entry.Delta2 = average(games[idx-1 : idx+1])
		}
		if idx >= 3 {
			entry.Delta3 = average(games[idx-2 : idx+1])
		}
		if idx >= 4 {
			entry.Delta4 = average(games[idx-3 : idx+1])
		}
		entries = append(entries, entry)
	}
	return entries
}

func average(window []KDA) *KDA {
	avg := &KDA{}
	for _, g := range window {
		avg.Kills += g.Kills
		avg.Deaths += g.Deaths
		avg.Assists += g.Assists
	}
	n := float64(len(window))
	avg.Kills /= n
	avg.Deaths /= n
	avg.Assists /= n
	return avg
}

func participantByID(result *riot.MatchResult, participantID int) (riot.Participant, bool) {
	for _, p := range result.Participants {
		if p.ParticipantID == participantID {
			return p, true
		}
	}
	return riot.Participant{}, false
}

func participantByChampion(result *riot.MatchResult, championID int) (riot.Participant, bool) {
	for _, p := range result.Participants {
		if p.ChampionID == championID {
			return p, true
		}
	}
	return riot.Participant{}, false
}

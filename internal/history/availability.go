package history

import (
	"context"

	"github.com/riftwatch/riftwatch/internal/lanes"
	"github.com/riftwatch/riftwatch/internal/riot"
)

// AvailabilityRequest identifies the loadout whose sample sizes to count.
type AvailabilityRequest struct {
	AccountID      int64
	ChampionID     int
	Lane           lanes.Lane
	SummonerSpells []int
	Runes          []int
	MatchTime      int64
}

// AvailabilityRecord reports how much history exists per categorisation,
// which tells downstream feature users how reliable each slice is.
type AvailabilityRecord struct {
	NumMatches                   int `json:"num_matches"`
	NumMatchesInRole             int `json:"num_matches_in_role"`
	NumMatchesAsChampion         int `json:"num_matches_as_champion"`
	NumMatchesWithSummonerSpells int `json:"num_matches_with_summonerspells"`
	NumMatchesWithRunes          int `json:"num_matches_with_runes"`
}

// Availability is the cheaper lookback walk: it only counts matches per
// categorisation, without fight parsing or stat extraction.
func (e *Extractor) Availability(ctx context.Context, req AvailabilityRequest) (*AvailabilityRecord, error) {
	rec := &AvailabilityRecord{}
	spells := toSet(req.SummonerSpells)
	runes := toSet(req.Runes)

	err := e.walk(ctx, req.AccountID, req.MatchTime, func(ref riot.MatchReference) error {
		rec.NumMatches++
		if ref.Champion == req.ChampionID {
			rec.NumMatchesAsChampion++
		}
		result, timeline, err := e.Source.ResultAndTimeline(ctx, ref)
		if err != nil {
			return err
		}
		if result.GameDuration < 300 {
			return nil
		}

		if lane, ok := lanes.Assign(result, timeline)[ref.Champion]; ok && lane == req.Lane {
			rec.NumMatchesInRole++
		}

		participant, ok := findParticipant(result, ref.Champion)
		if !ok {
			return nil
		}
		if setEqual(toSet([]int{participant.Spell1ID, participant.Spell2ID}), spells) {
			rec.NumMatchesWithSummonerSpells++
		}
		historicalRunes := toSet([]int{
			participant.Stats.Perk0, participant.Stats.Perk1, participant.Stats.Perk2,
			participant.Stats.Perk3, participant.Stats.Perk4, participant.Stats.Perk5,
		})
		if setEqual(historicalRunes, runes) {
			rec.NumMatchesWithRunes++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func toSet(vals []int) map[int]bool {
	set := make(map[int]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

func setEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

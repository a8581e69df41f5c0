// Package lanes infers the actual lane of every champion in a finished
// match. The API's own lane/role labels are unreliable, so the assignment is
// rebuilt from summoner spells, minion counts and early-game positions.
package lanes

import (
	"strconv"

	"github.com/riftwatch/riftwatch/internal/riot"
)

// Lane is a resolved position.
type Lane string

const (
	Top     Lane = "TOP"
	Jungle  Lane = "JUNGLE"
	Mid     Lane = "MID"
	Bottom  Lane = "BOTTOM"
	Support Lane = "SUPPORT"
)

// SmiteSpellID is the live id of the jungler-marking spell, the default for
// Options.
const SmiteSpellID = 11

// MapGeometry bounds the early-game lane areas with two half-plane formulas,
// in map units. Topside holds y >= TopMinY, x <= TopMaxX, y >= x + TopDiag;
// bottomside mirrors it.
type MapGeometry struct {
	TopMinY int
	TopMaxX int
	TopDiag int
	BotMaxY int
	BotMinX int
	BotDiag int
}

func (g MapGeometry) topside(x, y int) bool {
	return y >= g.TopMinY && x <= g.TopMaxX && y >= x+g.TopDiag
}

func (g MapGeometry) bottomside(x, y int) bool {
	return y <= g.BotMaxY && x >= g.BotMinX && y <= x-g.BotDiag
}

// Options configures the inference for one map and spell set.
type Options struct {
	SmiteSpellID int
	Geometry     MapGeometry
}

// DefaultOptions describes the current ranked map.
func DefaultOptions() Options {
	return Options{
		SmiteSpellID: SmiteSpellID,
		Geometry: MapGeometry{
			TopMinY: 4880, TopMaxX: 9880, TopDiag: 3000,
			BotMaxY: 9880, BotMinX: 4880, BotDiag: 5000,
		},
	}
}

type point struct{ x, y int }

// Assign maps every champion id in the match to its inferred lane, using the
// default map geometry and spell ids.
func Assign(result *riot.MatchResult, timeline *riot.Timeline) map[int]Lane {
	return DefaultOptions().Assign(result, timeline)
}

// Assign maps every champion id in the match to its inferred lane.
//
// Per team: the jungler is the smite carrier with the most neutral minions
// (every teammate is a candidate when nobody took smite), the support has
// the fewest total minions of the rest, the toplaner spent the most of
// minutes 1..6 in the top-side area, the carry the most in the bottom-side
// area, and the midlaner is whoever remains.
func (o Options) Assign(result *riot.MatchResult, timeline *riot.Timeline) map[int]Lane {
	mapping := make(map[int]Lane, len(result.Participants))

	for _, teamID := range []int{100, 200} {
		var team []riot.Participant
		for _, p := range result.Participants {
			if p.TeamID == teamID {
				team = append(team, p)
			}
		}
		if len(team) == 0 {
			continue
		}

		positions := earlyPositions(timeline, team)

		jungle := pickJungler(team, o.SmiteSpellID)
		remaining := without(team, jungle.ParticipantID)

		support := pickMin(remaining, func(p riot.Participant) float64 { return p.Stats.TotalMinionsKilled })
		remaining = without(remaining, support.ParticipantID)

		top := pickMax(remaining, func(p riot.Participant) float64 {
			return float64(countArea(positions[p.ParticipantID], o.Geometry.topside))
		})
		remaining = without(remaining, top.ParticipantID)

		bottom := pickMax(remaining, func(p riot.Participant) float64 {
			return float64(countArea(positions[p.ParticipantID], o.Geometry.bottomside))
		})
		mid := without(remaining, bottom.ParticipantID)[0]

		mapping[top.ChampionID] = Top
		mapping[jungle.ChampionID] = Jungle
		mapping[mid.ChampionID] = Mid
		mapping[bottom.ChampionID] = Bottom
		mapping[support.ChampionID] = Support
	}
	return mapping
}

// earlyPositions collects each teammate's position over timeline frames
// 1..6. A frame without a position reads as (-120, -120), which is outside
// both lane areas.
func earlyPositions(timeline *riot.Timeline, team []riot.Participant) map[int][]point {
	positions := make(map[int][]point, len(team))
	end := 7
	if len(timeline.Frames) < end {
		end = len(timeline.Frames)
	}
	if end <= 1 {
		return positions
	}
	for _, frame := range timeline.Frames[1:end] {
		for _, p := range team {
			pf, ok := frame.ParticipantFrames[strconv.Itoa(p.ParticipantID)]
			if !ok {
				continue
			}
			pt := point{-120, -120}
			if pf.Position != nil {
				pt = point{pf.Position.X, pf.Position.Y}
			}
			positions[p.ParticipantID] = append(positions[p.ParticipantID], pt)
		}
	}
	return positions
}

func pickJungler(team []riot.Participant, smiteSpellID int) riot.Participant {
	var withSmite []riot.Participant
	for _, p := range team {
		if p.Spell1ID == smiteSpellID || p.Spell2ID == smiteSpellID {
			withSmite = append(withSmite, p)
		}
	}
	if len(withSmite) == 0 {
		withSmite = team
	}
	return pickMax(withSmite, func(p riot.Participant) float64 { return p.Stats.NeutralMinionsKilled })
}

func countArea(pts []point, in func(x, y int) bool) int {
	n := 0
	for _, pt := range pts {
		if in(pt.x, pt.y) {
			n++
		}
	}
	return n
}

// pickMax keeps the first maximum, so ties resolve in participant order.
func pickMax(ps []riot.Participant, key func(riot.Participant) float64) riot.Participant {
	best := ps[0]
	bestKey := key(best)
	for _, p := range ps[1:] {
		if k := key(p); k > bestKey {
			best, bestKey = p, k
		}
	}
	return best
}

func pickMin(ps []riot.Participant, key func(riot.Participant) float64) riot.Participant {
	best := ps[0]
	bestKey := key(best)
	for _, p := range ps[1:] {
		if k := key(p); k < bestKey {
			best, bestKey = p, k
		}
	}
	return best
}

func without(ps []riot.Participant, participantID int) []riot.Participant {
	out := make([]riot.Participant, 0, len(ps))
	for _, p := range ps {
		if p.ParticipantID != participantID {
			out = append(out, p)
		}
	}
	return out
}

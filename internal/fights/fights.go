// Package fights reconstructs discrete fights from the kill events of a
// match timeline, seen from one participant's perspective. Adjacent kill
// events are merged into fights, participants are identified by champion and
// each fight carries the focal player's effective item investment at that
// moment.
package fights

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/riftwatch/riftwatch/internal/riot"
)

// Catalog resolves item ids to their total gold worth for one game version.
type Catalog struct {
	worth map[int]int
}

// phantomWorth covers items present in timelines but absent from the version's
// item catalogue (removed between patches).
var phantomWorth = map[int]int{
	1018: 2200,
}

type itemsFile struct {
	Data map[string]struct {
		Gold struct {
			Total int `json:"total"`
		} `json:"gold"`
	} `json:"data"`
}

// NewCatalog parses a raw client items file.
func NewCatalog(itemsJSON []byte) (*Catalog, error) {
	var file itemsFile
	if err := json.Unmarshal(itemsJSON, &file); err != nil {
		return nil, fmt.Errorf("fights: parse items catalogue: %w", err)
	}
	worth := make(map[int]int, len(file.Data))
	for id, item := range file.Data {
		var n int
		if _, err := fmt.Sscanf(id, "%d", &n); err != nil {
			continue
		}
		worth[n] = item.Gold.Total
	}
	return &Catalog{worth: worth}, nil
}

// Worth returns the total gold value of an item. Item 0 is "no item".
func (c *Catalog) Worth(itemID int) (int, error) {
	if itemID == 0 {
		return 0, nil
	}
	if w, ok := phantomWorth[itemID]; ok {
		return w, nil
	}
	w, ok := c.worth[itemID]
	if !ok {
		return 0, fmt.Errorf("fights: unknown item %d", itemID)
	}
	return w, nil
}

// Fight is one reconstructed engagement. Allies, Enemies and Victims hold
// champion ids; champion 0 stands for a structure kill.
type Fight struct {
	Timestamp     int64          `json:"timestamp"`
	Position      *riot.Position `json:"position"`
	EffectiveGold int            `json:"effective_gold"`
	Allies        []int          `json:"allies"`
	Enemies       []int          `json:"enemies"`
	Victims       []int          `json:"victims"`
}

// Cluster walks the timeline from participantID's perspective and returns
// the fights they took part in, sorted by timestamp.
//
// Three passes: collect kill and death records with the running item
// investment, widen each record with victims of adjacent (15s) kill events
// involving the same people, then merge records whose victims overlap within
// a 30s lookahead so one fight appears once.
func Cluster(result *riot.MatchResult, timeline *riot.Timeline, catalog *Catalog, participantID int) ([]Fight, error) {
	championOf := make(map[int]int, len(result.Participants))
	for _, p := range result.Participants {
		championOf[p.ParticipantID] = p.ChampionID
	}

	effectiveGold := 0
	var kills, deaths []Fight
	var killEvents []riot.Event

	for _, frame := range timeline.Frames {
		for _, event := range frame.Events {
			switch event.Type {
			case riot.EventItemPurchased:
				if event.ParticipantID == participantID {
					w, err := catalog.Worth(event.ItemID)
					if err != nil {
						return nil, err
					}
					effectiveGold += w
				}
			case riot.EventItemDestroyed, riot.EventItemSold:
				if event.ParticipantID == participantID {
					w, err := catalog.Worth(event.ItemID)
					if err != nil {
						return nil, err
					}
					effectiveGold -= w
				}
			case riot.EventItemUndo:
				if event.ParticipantID == participantID {
					before, err := catalog.Worth(event.BeforeID)
					if err != nil {
						return nil, err
					}
					after, err := catalog.Worth(event.AfterID)
					if err != nil {
						return nil, err
					}
					effectiveGold += after - before
				}
			case riot.EventChampionKill:
				contributors := append([]int{event.KillerID}, event.AssistingParticipantIDs...)
				if contains(contributors, participantID) {
					kills = append(kills, Fight{
						Timestamp:     event.Timestamp,
						Position:      event.Position,
						EffectiveGold: effectiveGold,
						Allies:        append([]int(nil), contributors...),
						Enemies:       []int{event.VictimID},
						Victims:       []int{event.VictimID},
					})
				} else if event.VictimID == participantID {
					deaths = append(deaths, Fight{
						Timestamp:     event.Timestamp,
						Position:      event.Position,
						EffectiveGold: effectiveGold,
						Allies:        []int{event.VictimID},
						Enemies:       append([]int(nil), contributors...),
						Victims:       []int{event.VictimID},
					})
				}
				killEvents = append(killEvents, event)
			}
		}
	}

	augmentKills(kills, killEvents)
	augmentDeaths(deaths, killEvents)

	records := append(kills, deaths...)
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	// Champion identities survive remakes of the same fight; participant
	// ids do not cross matches. Killer id 0 (structures) maps to champion 0.
	for i := range records {
		records[i].Allies = remap(records[i].Allies, championOf)
		records[i].Enemies = remap(records[i].Enemies, championOf)
		records[i].Victims = remap(records[i].Victims, championOf)
	}

	mergeAdjacent(records)

	fights := records[:0]
	for _, r := range records {
		if len(r.Victims) > 0 {
			fights = append(fights, r)
		}
	}
	return fights, nil
}

// augmentKills widens each kill record with the outcomes of kill events
// within 15 seconds either way: further victims of the same allies, and the
// opposition's contributors when an ally went down too.
func augmentKills(kills []Fight, events []riot.Event) {
	for i := range kills {
		t := kills[i].Timestamp
		for _, event := range events {
			if event.Timestamp < t-15000 || event.Timestamp > t+15000 {
				continue
			}
			contributors := append([]int{event.KillerID}, event.AssistingParticipantIDs...)
			for _, ally := range append([]int(nil), kills[i].Allies...) {
				if contains(contributors, ally) {
					appendMissing(&kills[i].Enemies, event.VictimID)
					appendMissing(&kills[i].Victims, event.VictimID)
				} else if ally == event.VictimID {
					for _, enemy := range contributors {
						appendMissing(&kills[i].Enemies, enemy)
						appendMissing(&kills[i].Victims, event.VictimID)
					}
				}
			}
		}
	}
}

// augmentDeaths is the mirrored pass for death records.
func augmentDeaths(deaths []Fight, events []riot.Event) {
	for i := range deaths {
		t := deaths[i].Timestamp
		for _, event := range events {
			if event.Timestamp < t-15000 || event.Timestamp > t+15000 {
				continue
			}
			contributors := append([]int{event.KillerID}, event.AssistingParticipantIDs...)
			for _, enemy := range append([]int(nil), deaths[i].Enemies...) {
				if contains(contributors, enemy) {
					appendMissing(&deaths[i].Allies, event.VictimID)
					appendMissing(&deaths[i].Victims, event.VictimID)
				} else if enemy == event.VictimID {
					for _, ally := range contributors {
						appendMissing(&deaths[i].Allies, ally)
						appendMissing(&deaths[i].Victims, event.VictimID)
					}
				}
			}
		}
	}
}

// mergeAdjacent folds records whose victims overlap within a 30 second
// lookahead. A subset merges into the superset; partial overlaps subtract
// the earlier record's victims, leaving the off-spin fight standing alone.
func mergeAdjacent(records []Fight) {
	for i := range records {
		if len(records[i].Victims) == 0 {
			continue
		}
		t := records[i].Timestamp
		for j := i + 1; j < len(records); j++ {
			if records[j].Timestamp > t+30000 {
				break
			}
			if len(records[j].Victims) == 0 {
				continue
			}
			switch {
			case subset(records[j].Victims, records[i].Victims):
				for _, ally := range records[j].Allies {
					appendMissing(&records[i].Allies, ally)
				}
				for _, enemy := range records[j].Enemies {
					appendMissing(&records[i].Enemies, enemy)
				}
				records[j].Victims = nil
			case subset(records[i].Victims, records[j].Victims):
				for _, ally := range records[i].Allies {
					appendMissing(&records[j].Allies, ally)
				}
				for _, enemy := range records[i].Enemies {
					appendMissing(&records[j].Enemies, enemy)
				}
				records[i].Victims = nil
			case overlaps(records[i].Victims, records[j].Victims):
				kept := records[j].Victims[:0]
				for _, v := range records[j].Victims {
					if !contains(records[i].Victims, v) {
						kept = append(kept, v)
					}
				}
				records[j].Victims = kept
			}
			if len(records[i].Victims) == 0 {
				break
			}
		}
	}
}

func remap(participantIDs []int, championOf map[int]int) []int {
	out := make([]int, len(participantIDs))
	for i, id := range participantIDs {
		out[i] = championOf[id]
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func appendMissing(s *[]int, v int) {
	if !contains(*s, v) {
		*s = append(*s, v)
	}
}

func subset(inner, outer []int) bool {
	for _, v := range inner {
		if !contains(outer, v) {
			return false
		}
	}
	return true
}

func overlaps(a, b []int) bool {
	for _, v := range b {
		if contains(a, v) {
			return true
		}
	}
	return false
}

// Package pipeline observes live solo queue matches end to end: claim the
// match row, record participant tiers while the game is still on, wait for
// the result, then attach the timeline and the participants' histories.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/catalog"
	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/lanes"
	"github.com/riftwatch/riftwatch/internal/metrics"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/staticdata"
	"github.com/riftwatch/riftwatch/internal/store"
	"github.com/riftwatch/riftwatch/internal/tiers"
)

// The result only becomes available once the match ends, so the pipeline
// sleeps until the earliest plausible finish and then polls.
const (
	minGameMinutes = 20
	resultPollWait = 5 * time.Minute
)

// API is the vendor surface the pipeline needs.
type API interface {
	SummonerByName(ctx context.Context, region, name string) (*riot.Summoner, error)
	TiersBySummoner(ctx context.Context, region string, summonerID int64) ([]riot.LeaguePosition, []byte, error)
	ActiveMatch(ctx context.Context, region string, summonerID int64) (*riot.CurrentMatch, error)
	MatchResult(ctx context.Context, region string, matchID int64) (*riot.MatchResult, []byte, error)
	MatchTimeline(ctx context.Context, region string, matchID int64) (*riot.Timeline, []byte, error)
}

// HistorySource produces one participant's feature record.
type HistorySource interface {
	Stats(ctx context.Context, req history.Request) (*history.Record, error)
}

// MatchStore is the slice of the match repository the pipeline writes to.
type MatchStore interface {
	Claim(ctx context.Context, matchID, regionID int64) error
	AttachTiers(ctx context.Context, matchID, regionID int64, tierAvg string, tiersMeta []byte) error
	AttachResult(ctx context.Context, matchID, regionID int64, versionID sql.NullInt64, duration int64, resultJSON []byte) error
	AttachTimeline(ctx context.Context, matchID, regionID int64, timelineJSON []byte) error
	AttachHistories(ctx context.Context, matchID, regionID int64, historiesJSON []byte) error
}

// SummonerStore upserts summoner records.
type SummonerStore interface {
	Upsert(ctx context.Context, regionID, accountID, summonerID int64, name string) (*store.Summoner, error)
}

// TierHistoryStore appends tier milestones.
type TierHistoryStore interface {
	Append(ctx context.Context, summonerPK int64, tier string, tiersJSON []byte) (*store.TierMilestone, error)
}

// Pipeline drives the observation of one live match. Sleep and Now are
// replaceable in tests; nil means real time.
type Pipeline struct {
	API           API
	Matches       MatchStore
	Summoners     SummonerStore
	TierHistories TierHistoryStore
	Versions      history.VersionSource
	Histories     HistorySource
	Region        store.Region
	Log           zerolog.Logger
	Sleep         func(context.Context, time.Duration) error
	Now           func() time.Time
}

type teamTier struct {
	ChampionID int    `json:"champion_id"`
	Tier       string `json:"tier"`
}

// Observe takes a spectator view of an ongoing match and carries it through
// every stage. It returns the participant summoners so the caller can adopt
// them as its next stalking targets. store.ErrMatchTaken means another
// process owns the match.
func (p *Pipeline) Observe(ctx context.Context, current *riot.CurrentMatch) ([]store.Summoner, error) {
	log := p.Log.With().Int64("match_id", current.GameID).Logger()

	if err := p.Matches.Claim(ctx, current.GameID, p.Region.ID); err != nil {
		if errors.Is(err, store.ErrMatchTaken) {
			metrics.PipelineStageTotal.WithLabelValues("claim", "taken").Inc()
		}
		return nil, err
	}
	metrics.PipelineStageTotal.WithLabelValues("claim", "ok").Inc()

	// Tiers are a spectator-time artifact: once the game ends the API no
	// longer tells us what the participants were ranked when they queued.
	summoners, teamsTiers, err := p.recordTiers(ctx, current)
	if err != nil {
		return nil, err
	}
	matchAvg, err := averageTiers(teamsTiers)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(teamsTiers)
	if err != nil {
		return nil, err
	}
	if err := p.Matches.AttachTiers(ctx, current.GameID, p.Region.ID, matchAvg, meta); err != nil {
		return nil, err
	}
	metrics.PipelineStageTotal.WithLabelValues("tiers", "ok").Inc()
	log.Info().Str("tier_avg", matchAvg).Msg("recorded participant tiers")

	if err := p.waitForFinish(ctx, current); err != nil {
		return nil, err
	}

	result, err := p.attachResult(ctx, current)
	if err != nil {
		metrics.PipelineStageTotal.WithLabelValues("result", "error").Inc()
		return nil, err
	}
	metrics.PipelineStageTotal.WithLabelValues("result", "ok").Inc()
	timeline := p.attachTimeline(ctx, current, result)

	if timeline != nil {
		metrics.PipelineStageTotal.WithLabelValues("timeline", "ok").Inc()
		if err := p.attachHistories(ctx, current, result, timeline); err != nil {
			return nil, err
		}
	} else {
		metrics.PipelineStageTotal.WithLabelValues("timeline", "missing").Inc()
		log.Warn().Msg("no timeline, skipping participant histories")
	}

	log.Info().Msg("match observed")
	return summoners, nil
}

// recordTiers upserts every participant's summoner record, appends a tier
// milestone per participant, and groups the tiers by team.
func (p *Pipeline) recordTiers(ctx context.Context, current *riot.CurrentMatch) ([]store.Summoner, map[string][]teamTier, error) {
	summoners := make([]store.Summoner, 0, len(current.Participants))
	teamsTiers := make(map[string][]teamTier)

	for _, cp := range current.Participants {
		apiSummoner, err := riot.Retry(ctx, p.retryPolicy(2),
			func(ctx context.Context) (*riot.Summoner, error) {
				return p.API.SummonerByName(ctx, p.Region.Name, cp.SummonerName)
			})
		if err != nil {
			return nil, nil, err
		}
		summoner, err := p.Summoners.Upsert(ctx, p.Region.ID, apiSummoner.AccountID, apiSummoner.ID, apiSummoner.Name)
		if err != nil {
			return nil, nil, err
		}
		summoners = append(summoners, *summoner)

		type tiersBody struct {
			positions []riot.LeaguePosition
			raw       []byte
		}
		body, err := riot.Retry(ctx, p.retryPolicy(2),
			func(ctx context.Context) (tiersBody, error) {
				positions, raw, err := p.API.TiersBySummoner(ctx, p.Region.Name, summoner.SummonerID)
				return tiersBody{positions: positions, raw: raw}, err
			})
		if err != nil {
			return nil, nil, err
		}
		tier := soloQueueTier(body.positions)
		if _, err := p.TierHistories.Append(ctx, summoner.ID, tier, body.raw); err != nil {
			return nil, nil, err
		}

		team := strconv.Itoa(cp.TeamID)
		teamsTiers[team] = append(teamsTiers[team], teamTier{ChampionID: cp.ChampionID, Tier: tier})
	}
	return summoners, teamsTiers, nil
}

// soloQueueTier renders the ranked solo standing as "TIER RANK".
func soloQueueTier(positions []riot.LeaguePosition) string {
	for _, pos := range positions {
		if pos.QueueType == riot.RankedSoloQueue {
			return pos.Tier + " " + pos.Rank
		}
	}
	return tiers.Unranked
}

// averageTiers averages each team, then averages the teams.
func averageTiers(teamsTiers map[string][]teamTier) (string, error) {
	teamAvgs := make([]string, 0, len(teamsTiers))
	for _, team := range teamsTiers {
		members := make([]string, 0, len(team))
		for _, t := range team {
			members = append(members, t.Tier)
		}
		avg, err := tiers.Average(members)
		if err != nil {
			return "", err
		}
		teamAvgs = append(teamAvgs, avg)
	}
	return tiers.Average(teamAvgs)
}

// waitForFinish sleeps out the remainder of the shortest plausible game. A
// zero start time means the game is still in loading screen.
func (p *Pipeline) waitForFinish(ctx context.Context, current *riot.CurrentMatch) error {
	minutesOn := 0
	if current.GameStartTime != 0 {
		minutesOn = int((p.now().UnixMilli() - current.GameStartTime) / 1000 / 60)
	}
	if minutesOn >= minGameMinutes {
		return nil
	}
	wait := time.Duration(minGameMinutes-minutesOn) * time.Minute
	p.Log.Info().Int64("match_id", current.GameID).Dur("wait", wait).Msg("waiting for match to finish")
	return p.sleep(ctx, wait)
}

// attachResult polls for the finished match, resolves its client version and
// persists the verbatim result body.
func (p *Pipeline) attachResult(ctx context.Context, current *riot.CurrentMatch) (*riot.MatchResult, error) {
	fetchRegion := p.fetchRegion(current.PlatformID)

	type resultBody struct {
		result *riot.MatchResult
		raw    []byte
	}
	policy := p.retryPolicy(2)
	policy.NotFound = riot.NotFoundInProgress
	policy.InProgressWait = resultPollWait
	body, err := riot.Retry(ctx, policy,
		func(ctx context.Context) (resultBody, error) {
			result, raw, err := p.API.MatchResult(ctx, fetchRegion, current.GameID)
			return resultBody{result: result, raw: raw}, err
		})
	if err != nil {
		return nil, err
	}

	versionID := sql.NullInt64{}
	version, err := p.Versions.EnsureVersion(ctx, body.result.GameVersion)
	switch {
	case err == nil:
		versionID = sql.NullInt64{Int64: version.ID, Valid: true}
	case errors.Is(err, staticdata.ErrUnknownVersion):
		p.Log.Warn().Int64("match_id", current.GameID).Str("game_version", body.result.GameVersion).
			Msg("game version unresolved")
	default:
		return nil, err
	}
	if err := p.Matches.AttachResult(ctx, current.GameID, p.Region.ID, versionID, body.result.GameDuration, body.raw); err != nil {
		return nil, err
	}
	return body.result, nil
}

// attachTimeline is best effort: a match without a timeline is still worth
// keeping, and the repair sweep revisits the gap.
func (p *Pipeline) attachTimeline(ctx context.Context, current *riot.CurrentMatch, result *riot.MatchResult) *riot.Timeline {
	fetchRegion := p.fetchRegion(result.PlatformID)

	type timelineBody struct {
		timeline *riot.Timeline
		raw      []byte
	}
	body, err := riot.Retry(ctx, p.retryPolicy(2),
		func(ctx context.Context) (timelineBody, error) {
			timeline, raw, err := p.API.MatchTimeline(ctx, fetchRegion, current.GameID)
			return timelineBody{timeline: timeline, raw: raw}, err
		})
	if err != nil {
		p.Log.Warn().Err(err).Int64("match_id", current.GameID).Msg("timeline unavailable")
		return nil
	}
	if err := p.Matches.AttachTimeline(ctx, current.GameID, p.Region.ID, body.raw); err != nil {
		p.Log.Warn().Err(err).Int64("match_id", current.GameID).Msg("timeline not persisted")
		return nil
	}
	return body.timeline
}

// attachHistories extracts one feature record per participant, keyed by
// champion. Missing static data cancels the whole stage; fatal rate-limit
// errors propagate; anything else leaves the gap for the repair sweep.
func (p *Pipeline) attachHistories(ctx context.Context, current *riot.CurrentMatch, result *riot.MatchResult, timeline *riot.Timeline) error {
	mapping := lanes.Assign(result, timeline)
	records := make(map[string]*history.Record, len(result.ParticipantIdentities))

	for i, identity := range result.ParticipantIdentities {
		participant, ok := participantByID(result, identity.ParticipantID)
		if !ok {
			continue
		}
		p.Log.Info().Int64("match_id", current.GameID).
			Int("participant", i+1).Int("of", len(result.ParticipantIdentities)).
			Msg("requesting history")
		record, err := p.Histories.Stats(ctx, history.Request{
			AccountID:  identity.Player.CurrentAccountID,
			ChampionID: participant.ChampionID,
			Lane:       mapping[participant.ChampionID],
			MatchTime:  result.GameCreation,
		})
		switch {
		case err == nil:
			records[strconv.Itoa(participant.ChampionID)] = record
		case errors.Is(err, staticdata.ErrMissingItems):
			p.Log.Warn().Int64("match_id", current.GameID).
				Msg("missing static game data, skipping histories")
			return nil
		case riot.IsFatalRateLimit(err):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			p.Log.Warn().Err(err).Int64("match_id", current.GameID).
				Msg("history extraction failed, leaving histories for repair")
			return nil
		}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return p.Matches.AttachHistories(ctx, current.GameID, p.Region.ID, raw)
}

func participantByID(result *riot.MatchResult, participantID int) (riot.Participant, bool) {
	for _, p := range result.Participants {
		if p.ParticipantID == participantID {
			return p, true
		}
	}
	return riot.Participant{}, false
}

// fetchRegion maps a platform id back to a region name, falling back to the
// pipeline's own region.
func (p *Pipeline) fetchRegion(platformID string) string {
	if platformID != "" {
		if name, err := catalog.RegionForPlatform(platformID); err == nil {
			return name
		}
	}
	return p.Region.Name
}

func (p *Pipeline) retryPolicy(retries int) riot.RetryPolicy {
	return riot.RetryPolicy{Retries: retries, Sleep: p.Sleep}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/store"
)

// Observer is the pipeline surface the stalker drives.
type Observer interface {
	Observe(ctx context.Context, current *riot.CurrentMatch) ([]store.Summoner, error)
}

// Prompter supplies stalking targets when the automatic chain runs dry.
type Prompter interface {
	// Targets blocks for operator input and returns summoner names.
	Targets(region string) ([]string, error)
}

// Stalker keeps a set of target summoners, waits for one of them to enter a
// ranked solo game, and hands the match to the pipeline. Observed matches
// yield ten fresh targets, so one seeded name can keep the chain going for
// hours. Zero Rounds/RoundWait mean the defaults of 5 rounds, 6 minutes.
type Stalker struct {
	API       API
	Pipeline  Observer
	Summoners SummonerStore
	Region    store.Region
	Prompt    Prompter
	Log       zerolog.Logger
	Rounds    int
	RoundWait time.Duration
	Sleep     func(context.Context, time.Duration) error
}

func (s *Stalker) rounds() int {
	if s.Rounds > 0 {
		return s.Rounds
	}
	return 5
}

func (s *Stalker) roundWait() time.Duration {
	if s.RoundWait > 0 {
		return s.RoundWait
	}
	return 6 * time.Minute
}

// Run loops until the context ends or the vendor reports our rate limiting
// broken. Non-fatal observation failures drop the target whose match failed
// and the chain continues with the rest.
func (s *Stalker) Run(ctx context.Context) error {
	var targets []store.Summoner
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(targets) == 0 {
			resolved, err := s.promptTargets(ctx)
			if err != nil {
				return err
			}
			targets = resolved
		}

		current, owner, err := s.findOngoing(ctx, targets)
		if err != nil {
			return err
		}
		if current == nil {
			s.Log.Info().Int("targets", len(targets)).
				Msg("no target entered a game, switching to manual input")
			targets = nil
			continue
		}

		summoners, err := s.Pipeline.Observe(ctx, current)
		switch {
		case err == nil:
			targets = summoners
			s.Log.Info().Int("targets", len(targets)).Msg("adopted match participants as targets")
		case errors.Is(err, store.ErrMatchTaken):
			s.Log.Info().Int64("match_id", current.GameID).Msg("match taken by another process")
			targets = dropTarget(targets, owner)
		case riot.IsFatalRateLimit(err):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			s.Log.Warn().Err(err).Int64("match_id", current.GameID).Msg("observation failed, dropping its target")
			targets = dropTarget(targets, owner)
		}
	}
}

// promptTargets asks the operator for names until at least one resolves to a
// real summoner.
func (s *Stalker) promptTargets(ctx context.Context) ([]store.Summoner, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names, err := s.Prompt.Targets(s.Region.Name)
		if err != nil {
			return nil, err
		}
		var targets []store.Summoner
		for _, name := range names {
			apiSummoner, err := s.API.SummonerByName(ctx, s.Region.Name, name)
			if riot.IsStatus(err, 404) {
				s.Log.Info().Str("name", name).Msg("summoner not found")
				continue
			}
			if err != nil {
				return nil, err
			}
			summoner, err := s.Summoners.Upsert(ctx, s.Region.ID, apiSummoner.AccountID, apiSummoner.ID, apiSummoner.Name)
			if err != nil {
				return nil, err
			}
			targets = append(targets, *summoner)
		}
		if len(targets) > 0 {
			return targets, nil
		}
		s.Log.Info().Msg("no names resolved, try again")
	}
}

// findOngoing polls every target once per round. Nil match means the whole
// exhaustion window passed without any target queueing up.
func (s *Stalker) findOngoing(ctx context.Context, targets []store.Summoner) (*riot.CurrentMatch, store.Summoner, error) {
	for round := 0; round < s.rounds(); round++ {
		if round > 0 {
			s.Log.Info().Dur("wait", s.roundWait()).Msg("no target in game, re-checking after a pause")
			if err := s.sleep(ctx, s.roundWait()); err != nil {
				return nil, store.Summoner{}, err
			}
		}
		for _, target := range targets {
			current, err := s.activeMatch(ctx, target)
			if err != nil {
				if riot.IsFatalRateLimit(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, store.Summoner{}, err
				}
				s.Log.Warn().Err(err).Str("name", target.LatestName).Msg("spectator check failed")
				continue
			}
			if current == nil {
				continue
			}
			s.Log.Info().Str("name", target.LatestName).Int64("match_id", current.GameID).
				Msg("target is in an ongoing match")
			return current, target, nil
		}
	}
	return nil, store.Summoner{}, nil
}

// activeMatch returns the target's ongoing ranked solo game, or nil when the
// target is out of game or in another queue.
func (s *Stalker) activeMatch(ctx context.Context, target store.Summoner) (*riot.CurrentMatch, error) {
	current, err := riot.Retry(ctx, riot.RetryPolicy{NotFound: riot.NotFoundEmpty, Sleep: s.Sleep},
		func(ctx context.Context) (*riot.CurrentMatch, error) {
			return s.API.ActiveMatch(ctx, s.Region.Name, target.SummonerID)
		})
	if errors.Is(err, riot.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if current.GameQueueConfigID != riot.SoloQueueID {
		s.Log.Debug().Str("name", target.LatestName).Int64("queue", current.GameQueueConfigID).
			Msg("target is in a different queue")
		return nil, nil
	}
	return current, nil
}

func dropTarget(targets []store.Summoner, owner store.Summoner) []store.Summoner {
	kept := make([]store.Summoner, 0, len(targets))
	for _, t := range targets {
		if t.SummonerID != owner.SummonerID {
			kept = append(kept, t)
		}
	}
	return kept
}

func (s *Stalker) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
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

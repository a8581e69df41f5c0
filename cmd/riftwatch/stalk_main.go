package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/pipeline"
)

func newStalkCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stalk REGION [RATELIMIT_LOGFILE]",
		Short: "Follow target summoners and record every ranked match they enter",
		Long: `Prompts for target summoners, waits for one of them to enter a ranked
solo game and records the match end to end: participant tiers while the game
is on, then the result, timeline and per-participant history features.
Participants of each observed match become the next targets.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logfile := ""
			if len(args) > 1 {
				logfile = args[1]
			}
			a, err := buildApp(ctx, cmd, logger, logfile)
			if err != nil {
				return err
			}
			defer a.Close()

			region, err := a.region(ctx, args[0])
			if err != nil {
				return err
			}

			extractor := &history.Extractor{
				Source:   a.source(*region),
				Catalogs: a.catalogs,
				Versions: a.resolver,
				Log:      logger,
			}
			pipe := &pipeline.Pipeline{
				API:           a.client,
				Matches:       a.store.Matches,
				Summoners:     a.store.Summoners,
				TierHistories: a.store.TierHistories,
				Versions:      a.resolver,
				Histories:     extractor,
				Region:        *region,
				Log:           logger,
			}
			stalker := &pipeline.Stalker{
				API:       a.client,
				Pipeline:  pipe,
				Summoners: a.store.Summoners,
				Region:    *region,
				Prompt:    pipeline.NewTerminalPrompter(),
				Log:       logger,
			}
			return stalker.Run(ctx)
		},
	}
}

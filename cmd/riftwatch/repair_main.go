package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/repair"
)

func newRepairCmd(logger zerolog.Logger) *cobra.Command {
	var (
		regionName string
		semver     string
		logfile    string
	)
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Backfill matches with a known tier but missing result, timeline, histories or version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, cmd, logger, logfile)
			if err != nil {
				return err
			}
			defer a.Close()

			region, err := a.region(ctx, regionName)
			if err != nil {
				return err
			}

			// Repairs rebuild availability counts rather than full
			// feature records, over a slightly wider game window.
			extractor := &history.Extractor{
				Source:   a.source(*region),
				Catalogs: a.catalogs,
				Versions: a.resolver,
				MaxGames: 50,
				Log:      logger,
			}
			repairer := &repair.Repairer{
				API:       a.client,
				Matches:   a.store.Matches,
				Versions:  a.resolver,
				Histories: extractor,
				Region:    *region,
				Log:       logger,
			}
			return repairer.Run(ctx, semver)
		},
	}
	cmd.Flags().StringVar(&regionName, "region", "", "region name of the target matches")
	cmd.Flags().StringVar(&semver, "semver", "", "optionally limit repairs to one game version")
	cmd.Flags().StringVar(&logfile, "logfile", "", "quota admission logfile location")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

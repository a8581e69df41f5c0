package main

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftwatch/riftwatch/internal/delta"
)

func newDeltaCmd(logger zerolog.Logger) *cobra.Command {
	var (
		regionName   string
		tiers        []string
		semver       string
		startIndex   int
		totalMatches int
		totalParsed  int
		logfile      string
		outPath      string
	)
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Build a dataset of recurrent kill/death/assist tendencies from stored high-tier matches",
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

			scanner := &delta.Scanner{
				Matches:      a.store.Matches,
				Source:       a.source(*region),
				Region:       *region,
				Tiers:        tiers,
				Semver:       semver,
				StartIndex:   startIndex,
				TotalMatches: totalMatches,
				TotalParsed:  totalParsed,
				Log:          logger,
			}
			aggregates, err := scanner.Run(ctx)
			if err != nil {
				return err
			}

			raw, err := json.Marshal(aggregates)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, raw, 0o644); err != nil {
				return err
			}
			logger.Info().Int("participants", len(aggregates)).Str("out", outPath).Msg("dataset written")
			return nil
		},
	}
	cmd.Flags().StringVar(&regionName, "region", "", "region name of the target matches")
	cmd.Flags().StringArrayVar(&tiers, "tier", []string{"MASTER", "CHALLENGER"}, "repeat to target several tier averages")
	cmd.Flags().StringVar(&semver, "semver", "", "target game version of the stored matches")
	cmd.Flags().IntVar(&startIndex, "start-index", 0, "first match of the scan window")
	cmd.Flags().IntVar(&totalMatches, "total-matches", 2, "number of matches in the scan window")
	cmd.Flags().IntVar(&totalParsed, "total-parsed", 0, "cap on historical games per participant, 0 for no cap")
	cmd.Flags().StringVar(&logfile, "ratelimit-logfile", "", "quota admission logfile location")
	cmd.Flags().StringVar(&outPath, "out", "deltas.json", "output file")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("semver")
	return cmd
}

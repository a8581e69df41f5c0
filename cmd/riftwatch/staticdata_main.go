package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftwatch/riftwatch/internal/staticdata"
)

func newStaticdataCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "staticdata",
		Short: "Register new game versions and backfill their static client data",
		Long: `Fetches the list of game versions from the static data CDN, registers
versions not seen before, and downloads the profile icon, champion, item,
summoner spell and rune files for every version still lacking them. Meant to
run periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, cmd, logger, "")
			if err != nil {
				return err
			}
			defer a.Close()

			gatherer := staticdata.NewGatherer(a.store, a.dragon, logger)
			return gatherer.Run(ctx)
		},
	}
}

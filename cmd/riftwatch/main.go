package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "riftwatch"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	logger := log.With().Str("instance", uuid.NewString()[:8]).Logger()

	rootCmd := &cobra.Command{
		Use:     appName,
		Version: version,
		Short:   "Live match observation and history extraction for ranked solo queue",
		Long: `riftwatch watches target summoners, records their ranked matches while
they are still observable, and derives per-participant behavioural features
from each player's recent history. Requests to the vendor API are admitted
through a request-history ledger shared across every riftwatch process using
the same key.`,
	}
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9633)")
	rootCmd.PersistentFlags().String("method-limits", "", "YAML override for the compiled-in method rate limits")

	rootCmd.AddCommand(newStalkCmd(logger))
	rootCmd.AddCommand(newRepairCmd(logger))
	rootCmd.AddCommand(newStaticdataCmd(logger))
	rootCmd.AddCommand(newDeltaCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

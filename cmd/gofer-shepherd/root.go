package main

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gofer-shepherd",
	Short: "Run a pipeline's task graph through the run execution core.",
	Long: `gofer-shepherd is a small standalone entrypoint for the run execution core.

It loads a pipeline definition from a local file, starts a run through the core, waits for it to
finish, and prints the resulting task execution statuses. It stands in for the full service's
HTTP/RPC surface as a way to exercise the core end-to-end without standing up the rest of the
system.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "configuration file path")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colorized status output")

	rootCmd.AddCommand(cmdRun)
	rootCmd.AddCommand(cmdLogs)

	setupLogging()
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

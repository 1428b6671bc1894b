package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmdCtx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "gleaner",
		Short:         "Harvest and enrich a local media metadata catalog",
		Long:          "Gleaner pulls movie, series, and person records from TMDB, enriches them\nthrough rotating detail passes, links credits in both directions, and keeps\nthe catalog current from the upstream change feeds.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := cmdCtx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	cmdCtx.configFlag = flags.StringP("config", "c", "", "Path to config file")

	rootCmd.AddCommand(
		newConfigCommand(cmdCtx),
		newHarvestCommand(cmdCtx),
		newEnrichCommand(cmdCtx),
		newSyncCommand(cmdCtx),
		newLinkCommand(cmdCtx),
		newQualityCommand(cmdCtx),
		newRunCommand(cmdCtx),
		newQueueCommand(cmdCtx),
		newCyclesCommand(cmdCtx),
	)

	return rootCmd
}

// shouldSkipConfig reports whether the command opts out of config loading,
// consulting parent annotations so subcommands inherit the marker.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

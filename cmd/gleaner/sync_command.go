package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/tracker"
)

func newSyncCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		typeNames []string
		days      int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh records that changed upstream",
		Long:  "Walks the TMDB change feeds and requeues records the catalog already\nholds. Changed ids the catalog has never seen are enqueued as new work.",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseItemTypes(typeNames)
			if err != nil {
				return err
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}
			source, err := cmdCtx.tmdbClient()
			if err != nil {
				return err
			}

			return cmdCtx.withRunLock(func() error {
				return cmdCtx.withStore(func(store *catalog.Store) error {
					feed := tracker.New(source, store, cfg, logger)
					result, runErr := feed.Run(cmd.Context(), tracker.RunOptions{
						Days:  days,
						Types: types,
					})

					rows := [][]string{
						feedRow("movie", result.Movies),
						feedRow("series", result.Series),
						feedRow("person", result.People),
					}
					headers := []string{"Surface", "Pages", "Changed", "Refreshed", "Ingested"}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 1, 2, 3, 4))
					return runErr
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&typeNames, "types", nil, "Item types to sync (movie, series, person; all when empty)")
	flags.IntVar(&days, "days", 0, "Days of changes to cover (config default when 0)")
	return cmd
}

func feedRow(surface string, stats tracker.FeedStats) []string {
	return []string{
		surface,
		strconv.Itoa(stats.Pages),
		strconv.Itoa(stats.Changed),
		strconv.Itoa(stats.Refreshed),
		strconv.Itoa(stats.Ingested),
	}
}

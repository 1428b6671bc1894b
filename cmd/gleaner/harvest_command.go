package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/harvest"
)

func newHarvestCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		typeNames     []string
		strategyNames []string
		seqStart      int64
		seqEnd        int64
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Discover new records and enqueue them for enrichment",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseItemTypes(typeNames)
			if err != nil {
				return err
			}
			for _, itemType := range types {
				if itemType == catalog.ItemTypePerson {
					return fmt.Errorf("person records are seeded from credits; harvest movies or series")
				}
			}
			strategies, err := parseStrategies(strategyNames)
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
					harvester := harvest.New(cfg, source, store, logger)
					results, runErr := harvester.Run(cmd.Context(), harvest.RunOptions{
						Types:           types,
						Strategies:      strategies,
						SequentialStart: seqStart,
						SequentialEnd:   seqEnd,
						DryRun:          dryRun,
					})

					out := cmd.OutOrStdout()
					if len(results) > 0 {
						rows := make([][]string, 0, len(results))
						for _, result := range results {
							rows = append(rows, []string{
								string(result.ItemType),
								strconv.Itoa(result.Breadth),
								strconv.Itoa(result.Sequential),
								strconv.Itoa(result.Delta),
								strconv.Itoa(result.Harvested),
								strconv.Itoa(result.New),
								strconv.Itoa(result.Duplicates),
								strconv.Itoa(result.Enqueued),
								strconv.Itoa(result.Raised),
							})
						}
						headers := []string{"Type", "Breadth", "Sequential", "Delta", "Unique", "New", "Duplicates", "Enqueued", "Raised"}
						fmt.Fprintln(out, renderTable(headers, rows, 1, 2, 3, 4, 5, 6, 7, 8))
					}
					if runErr != nil {
						return runErr
					}
					if dryRun {
						fmt.Fprintln(out, "Dry run: nothing was enqueued")
					}
					return nil
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&typeNames, "types", nil, "Item types to harvest (movie, series; both when empty)")
	flags.StringSliceVar(&strategyNames, "strategies", nil, "Strategies to run in order (breadth, sequential, delta; config default when empty)")
	flags.Int64Var(&seqStart, "seq-start", 0, "Lower bound for the sequential scan")
	flags.Int64Var(&seqEnd, "seq-end", 0, "Upper bound for the sequential scan (latest known id when 0)")
	flags.BoolVar(&dryRun, "dry-run", false, "Compute results without enqueueing")
	return cmd
}

func parseStrategies(names []string) ([]string, error) {
	strategies := make([]string, 0, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		switch normalized {
		case harvest.StrategyBreadth, harvest.StrategySequential, harvest.StrategyDelta:
			strategies = append(strategies, normalized)
		default:
			return nil, fmt.Errorf("unknown harvest strategy %q", name)
		}
	}
	return strategies, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/linker"
)

func newLinkCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		reverse bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Report credit coverage and backfill missing people",
		Long:  "Reports how many credit edges the catalog holds and how many credited\npeople have no record yet. With --reverse those people are enqueued for\nenrichment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Enrichment.PeopleBatchSize
			}

			return cmdCtx.withStore(func(store *catalog.Store) error {
				out := cmd.OutOrStdout()

				if reverse {
					logger, err := cmdCtx.ensureLogger()
					if err != nil {
						return err
					}
					credits := linker.New(store, cfg, logger)
					result, err := credits.ReverseSweep(cmd.Context(), limit)
					if err != nil {
						return fmt.Errorf("reverse sweep: %w", err)
					}
					if result.Inserted+result.Raised+result.Skipped == 0 {
						fmt.Fprintln(out, "No credited people are missing records")
						return nil
					}
					fmt.Fprintf(out, "Enqueued %d missing people (%d raised, %d already queued)\n",
						result.Inserted, result.Raised, result.Skipped)
					return nil
				}

				cast, crew, err := store.CreditCounts(cmd.Context())
				if err != nil {
					return fmt.Errorf("count credit links: %w", err)
				}
				missing, err := store.MissingCreditPeople(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("find missing credit people: %w", err)
				}

				fmt.Fprintf(out, "Cast links: %d\n", cast)
				fmt.Fprintf(out, "Crew links: %d\n", crew)
				switch {
				case len(missing) == 0:
					fmt.Fprintln(out, "Every credited person has a record")
				case len(missing) == limit:
					fmt.Fprintf(out, "Missing people: %d or more (run with --reverse to enqueue them)\n", len(missing))
				default:
					fmt.Fprintf(out, "Missing people: %d (run with --reverse to enqueue them)\n", len(missing))
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&reverse, "reverse", false, "Enqueue credited people that have no record")
	flags.IntVar(&limit, "limit", 0, "Cap on people examined per sweep (people batch size when 0)")
	return cmd
}

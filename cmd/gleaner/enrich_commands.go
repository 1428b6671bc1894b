package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/enrich"
	"gleaner/internal/linker"
)

func newEnrichCommand(cmdCtx *commandContext) *cobra.Command {
	enrichCmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run enrichment passes over the catalog",
	}

	enrichCmd.AddCommand(
		newEnrichContentCommand(cmdCtx),
		newEnrichPeopleCommand(cmdCtx),
		newEnrichWikiCommand(cmdCtx),
	)

	return enrichCmd
}

func newEnrichContentCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		typeNames []string
		batch     int
		cycle     int
	)

	cmd := &cobra.Command{
		Use:   "content",
		Short: "Enrich queued movie and series records",
		Long:  "Claims pending movie and series work, fetches full details, persists\nthem, and links credits. Without --cycle the scheduler bucket advances\nafter a clean run; with --cycle N only that bucket is claimed and the\ncursor stays put.",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseItemTypes(typeNames)
			if err != nil {
				return err
			}
			for _, itemType := range types {
				if itemType == catalog.ItemTypePerson {
					return fmt.Errorf("person records are enriched by %q", "gleaner enrich people")
				}
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
					credits := linker.New(store, cfg, logger)
					pass := enrich.NewContentPass(cfg, source, store, credits, logger)

					var result enrich.Result
					runErr := runWithBucket(cmd.Context(), store, cfg, enrich.CycleClassContent, cycle, func(bucket *int) error {
						var passErr error
						result, passErr = pass.Run(cmd.Context(), enrich.ContentRunOptions{
							Types: types,
							Cycle: bucket,
							Limit: batch,
						})
						return passErr
					})

					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Claimed %d, enriched %d, failed %d\n", result.Claimed, result.Enriched, result.Failed)
					fmt.Fprintf(out, "Credits: %d cast, %d crew; %d people seeded, %d enqueued\n",
						result.Credits.CastLinks, result.Credits.CrewLinks, result.Credits.PeopleSeeded, result.Credits.Enqueued)
					return runErr
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&typeNames, "types", nil, "Item types to enrich (movie, series; both when empty)")
	flags.IntVar(&batch, "batch", 0, "Batch size override (config default when 0)")
	flags.IntVar(&cycle, "cycle", -1, "Pin one scheduler bucket instead of advancing the cursor")
	return cmd
}

func newEnrichPeopleCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		batch int
		cycle int
	)

	cmd := &cobra.Command{
		Use:   "people",
		Short: "Enrich queued person records",
		Long:  "Claims pending person work, fetches profiles and filmographies, pulls\nbiographies from Wikipedia, and enqueues credited content that is still\nmissing from the catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			bio, err := cmdCtx.wikipediaClient()
			if err != nil {
				return err
			}

			return cmdCtx.withRunLock(func() error {
				return cmdCtx.withStore(func(store *catalog.Store) error {
					credits := linker.New(store, cfg, logger)
					pass := enrich.NewPeoplePass(cfg, source, bio, store, credits, logger)

					var result enrich.Result
					runErr := runWithBucket(cmd.Context(), store, cfg, enrich.CycleClassPerson, cycle, func(bucket *int) error {
						var passErr error
						result, passErr = pass.Run(cmd.Context(), enrich.PeopleRunOptions{
							Cycle: bucket,
							Limit: batch,
						})
						return passErr
					})

					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Claimed %d, enriched %d, failed %d\n", result.Claimed, result.Enriched, result.Failed)
					fmt.Fprintf(out, "Filmography: %d credits matched, %d content enqueued, %d raised\n",
						result.Credits.Matched, result.Credits.Enqueued, result.Credits.Raised)
					return runErr
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&batch, "batch", 0, "Batch size override (config default when 0)")
	flags.IntVar(&cycle, "cycle", -1, "Pin one scheduler bucket instead of advancing the cursor")
	return cmd
}

func newEnrichWikiCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		typeNames []string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "wiki",
		Short: "Attach Wikidata ids and Wikipedia articles to content",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseItemTypes(typeNames)
			if err != nil {
				return err
			}
			for _, itemType := range types {
				if itemType == catalog.ItemTypePerson {
					return fmt.Errorf("the wiki pass walks movie and series records only")
				}
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}
			entities, err := cmdCtx.wikidataClient()
			if err != nil {
				return err
			}
			articles, err := cmdCtx.wikipediaClient()
			if err != nil {
				return err
			}

			return cmdCtx.withRunLock(func() error {
				return cmdCtx.withStore(func(store *catalog.Store) error {
					pass := enrich.NewWikiPass(cfg, entities, articles, store, logger)
					result, runErr := pass.Run(cmd.Context(), enrich.WikiRunOptions{
						Types: types,
						Limit: limit,
					})

					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Scanned %d, matched %d, unmatched %d\n", result.Scanned, result.Matched, result.Unmatched)
					fmt.Fprintf(out, "Updated %d records (%d failures)\n", result.Updated, result.Failed)
					return runErr
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&typeNames, "types", nil, "Item types to walk (movie, series; both when empty)")
	flags.IntVar(&limit, "limit", 0, "Stop after this many records (no cap when 0)")
	return cmd
}

// runWithBucket runs fn against one scheduler bucket. A pinned bucket (>= 0)
// is used as-is without touching the cursor; otherwise the scheduler picks
// the current bucket and advances it after a clean run.
func runWithBucket(ctx context.Context, store *catalog.Store, cfg *config.Config, class string, pinned int, fn func(bucket *int) error) error {
	if pinned >= 0 {
		bucket := pinned
		return fn(&bucket)
	}
	scheduler := enrich.NewCycleScheduler(store, cfg.Enrichment.CycleCount)
	return scheduler.RunWithCycle(ctx, class, func(bucket int) error {
		return fn(&bucket)
	})
}

package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/enrich"
)

func newCyclesCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Show enrichment cycle cursors and pending work per bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			return cmdCtx.withStore(func(store *catalog.Store) error {
				cursors, err := store.CycleCursors(cmd.Context())
				if err != nil {
					return fmt.Errorf("read cycle cursors: %w", err)
				}

				out := cmd.OutOrStdout()
				count := cfg.Enrichment.CycleCount
				cursorRows := make([][]string, 0, 2)
				for _, class := range []string{enrich.CycleClassContent, enrich.CycleClassPerson} {
					cursor := cursors[class]
					next := 0
					if count > 0 {
						next = cursor % count
					}
					cursorRows = append(cursorRows, []string{
						class,
						strconv.Itoa(cursor),
						strconv.Itoa(next),
						strconv.Itoa(count),
					})
				}
				headers := []string{"Class", "Cursor", "Next bucket", "Buckets"}
				fmt.Fprintln(out, renderTable(headers, cursorRows, 1, 2, 3))

				pendingRows := make([][]string, 0)
				for _, itemType := range catalog.AllItemTypes() {
					pending, err := store.PendingByCycle(cmd.Context(), itemType)
					if err != nil {
						return fmt.Errorf("pending by cycle: %w", err)
					}
					buckets := make([]int, 0, len(pending))
					for bucket := range pending {
						buckets = append(buckets, bucket)
					}
					slices.Sort(buckets)
					for _, bucket := range buckets {
						pendingRows = append(pendingRows, []string{
							string(itemType),
							strconv.Itoa(bucket),
							strconv.Itoa(pending[bucket]),
						})
					}
				}
				if len(pendingRows) == 0 {
					fmt.Fprintln(out, "No pending work")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Type", "Cycle", "Pending"}, pendingRows, 1, 2))
				return nil
			})
		},
	}
}

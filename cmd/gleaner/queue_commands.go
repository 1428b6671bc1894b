package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the work queue",
	}

	queueCmd.AddCommand(
		newQueueStatusCommand(cmdCtx),
		newQueueListCommand(cmdCtx),
		newQueueRetryCommand(cmdCtx),
		newQueueClearCompletedCommand(cmdCtx),
		newQueueClearFailedCommand(cmdCtx),
		newQueueResetStuckCommand(cmdCtx),
	)

	return queueCmd
}

func newQueueStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue totals by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(store *catalog.Store) error {
				stats, err := store.QueueStats(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue stats: %w", err)
				}

				total := 0
				rows := make([][]string, 0, len(stats)+1)
				for _, status := range catalog.AllStatuses() {
					count := stats[status]
					if count == 0 {
						continue
					}
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}

				out := cmd.OutOrStdout()
				if total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, 1))
				return nil
			})
		},
	}
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusNames []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusNames)
			if err != nil {
				return err
			}
			return cmdCtx.withStore(func(store *catalog.Store) error {
				items, err := store.ListWork(cmd.Context(), limit, statuses...)
				if err != nil {
					return fmt.Errorf("list queue items: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.NaturalKey,
						strconv.Itoa(item.Priority),
						strconv.Itoa(item.Cycle),
						string(item.Status),
						item.UpdatedAt.Format("2006-01-02 15:04"),
						item.Reason,
					})
				}
				headers := []string{"ID", "Key", "Priority", "Cycle", "Status", "Updated", "Reason"}
				fmt.Fprintln(out, renderTable(headers, rows, 0, 2, 3))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusNames, "status", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to show (0 for all)")
	return cmd
}

func newQueueRetryCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id ...]",
		Short: "Reopen failed items for another attempt",
		Long:  "Without arguments every failed item is reopened. With ids only those\nitems are reopened, and ids that are not in a failed state are ignored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return cmdCtx.withStore(func(store *catalog.Store) error {
				retried, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return fmt.Errorf("retry failed items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed items\n", retried)
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete completed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(store *catalog.Store) error {
				cleared, err := store.ClearCompleted(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear completed items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed items\n", cleared)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Delete failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(store *catalog.Store) error {
				cleared, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear failed items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", cleared)
				return nil
			})
		},
	}
}

func newQueueResetStuckCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Reopen items stuck in processing",
		Long:  "Items left in processing by an interrupted run stay claimed forever.\nThis moves them back to pending so the next pass picks them up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(store *catalog.Store) error {
				reset, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return fmt.Errorf("reset stuck items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", reset)
				return nil
			})
		},
	}
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/quality"
)

func newQualityCommand(cmdCtx *commandContext) *cobra.Command {
	var requeue bool

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Score record completeness and requeue the worst",
		Long:  "Scores every record against its completeness checklist, reports field\ncoverage per class, and with --requeue sends the worst scorers back to\nthe queue at high priority.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}

			return cmdCtx.withRunLock(func() error {
				return cmdCtx.withStore(func(store *catalog.Store) error {
					analyzer := quality.New(store, cfg, logger)
					report, err := analyzer.Run(cmd.Context(), quality.RunOptions{Requeue: requeue})
					if err != nil {
						return err
					}

					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)

					fmt.Fprintln(out, sectionHeader("Completeness", colorize))
					summaryRows := [][]string{
						classRow("content", report.Content),
						classRow("people", report.People),
					}
					headers := []string{"Class", "Records", "Average", "0-25", "26-50", "51-75", "76-100", "Low", "Requeued"}
					fmt.Fprintln(out, renderTable(headers, summaryRows, 1, 2, 3, 4, 5, 6, 7, 8))

					fmt.Fprintln(out, sectionHeader("Content coverage", colorize))
					fmt.Fprintln(out, coverageTable(report.Content))
					fmt.Fprintln(out, sectionHeader("People coverage", colorize))
					fmt.Fprintln(out, coverageTable(report.People))

					fmt.Fprintf(out, "Cast links: %d\n", report.CastLinks)
					fmt.Fprintf(out, "Crew links: %d\n", report.CrewLinks)
					fmt.Fprintf(out, "Report %s saved\n", report.ID)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&requeue, "requeue", false, "Requeue the worst-scoring records at high priority")
	return cmd
}

func classRow(name string, class quality.ClassSummary) []string {
	return []string{
		name,
		strconv.Itoa(class.Total),
		fmt.Sprintf("%.1f", class.AverageScore),
		strconv.Itoa(class.Distribution.UpTo25),
		strconv.Itoa(class.Distribution.UpTo50),
		strconv.Itoa(class.Distribution.UpTo75),
		strconv.Itoa(class.Distribution.UpTo100),
		strconv.Itoa(class.LowCount),
		strconv.Itoa(class.Requeued),
	}
}

func coverageTable(class quality.ClassSummary) string {
	rows := make([][]string, 0, len(class.Coverage))
	for _, field := range class.Coverage {
		share := 0.0
		if class.Total > 0 {
			share = float64(field.Count) * 100 / float64(class.Total)
		}
		rows = append(rows, []string{
			field.Field,
			strconv.Itoa(field.Count),
			fmt.Sprintf("%.1f%%", share),
		})
	}
	return renderTable([]string{"Field", "Records", "Share"}, rows, 1, 2)
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/enrich"
	"gleaner/internal/harvest"
	"gleaner/internal/linker"
	"gleaner/internal/pipeline"
	"gleaner/internal/quality"
	"gleaner/internal/tracker"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var taskNames []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline as a resident process",
		Long:  "Starts the configured tasks on their intervals and keeps them running\nuntil interrupted. A file lock next to the database enforces a single\npipeline per catalog.",
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

			names := taskNames
			if len(names) == 0 {
				names = cfg.Runner.Tasks
			}
			if len(names) == 0 {
				return fmt.Errorf("no tasks configured; set runner.tasks or pass --tasks")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmdCtx.withStore(func(store *catalog.Store) error {
				credits := linker.New(store, cfg, logger)
				deps := &pipelineDeps{
					cfg:         cfg,
					harvester:   harvest.New(cfg, source, store, logger),
					contentPass: enrich.NewContentPass(cfg, source, store, credits, logger),
					peoplePass:  enrich.NewPeoplePass(cfg, source, bio, store, credits, logger),
					feed:        tracker.New(source, store, cfg, logger),
					analyzer:    quality.New(store, cfg, logger),
					cycles:      enrich.NewCycleScheduler(store, cfg.Enrichment.CycleCount),
				}

				runner := pipeline.New(store, cfg, logger)
				for _, name := range names {
					task, err := deps.task(name)
					if err != nil {
						return err
					}
					runner.Register(task)
				}

				if err := runner.Start(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline running %d tasks; interrupt to stop\n", len(names))
				<-ctx.Done()
				runner.Stop()
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&taskNames, "tasks", nil, "Tasks to run (harvest, enrich-content, enrich-people, sync, quality; config default when empty)")
	return cmd
}

// pipelineDeps holds the components the resident tasks close over.
type pipelineDeps struct {
	cfg         *config.Config
	harvester   *harvest.Harvester
	contentPass *enrich.ContentPass
	peoplePass  *enrich.PeoplePass
	feed        *tracker.Tracker
	analyzer    *quality.Analyzer
	cycles      *enrich.CycleScheduler
}

func (d *pipelineDeps) task(name string) (pipeline.Task, error) {
	switch name {
	case "harvest":
		return pipeline.Task{
			Name:     name,
			Interval: taskInterval(d.cfg.Runner.HarvestInterval),
			Run: func(ctx context.Context) error {
				_, err := d.harvester.Run(ctx, harvest.RunOptions{})
				return err
			},
		}, nil
	case "enrich-content":
		return pipeline.Task{
			Name:     name,
			Interval: taskInterval(d.cfg.Runner.EnrichInterval),
			Run: func(ctx context.Context) error {
				return d.cycles.RunWithCycle(ctx, enrich.CycleClassContent, func(bucket int) error {
					_, err := d.contentPass.Run(ctx, enrich.ContentRunOptions{Cycle: &bucket})
					return err
				})
			},
		}, nil
	case "enrich-people":
		return pipeline.Task{
			Name:     name,
			Interval: taskInterval(d.cfg.Runner.EnrichInterval),
			Run: func(ctx context.Context) error {
				return d.cycles.RunWithCycle(ctx, enrich.CycleClassPerson, func(bucket int) error {
					_, err := d.peoplePass.Run(ctx, enrich.PeopleRunOptions{Cycle: &bucket})
					return err
				})
			},
		}, nil
	case "sync":
		return pipeline.Task{
			Name:     name,
			Interval: taskInterval(d.cfg.Runner.SyncInterval),
			Run: func(ctx context.Context) error {
				_, err := d.feed.Run(ctx, tracker.RunOptions{})
				return err
			},
		}, nil
	case "quality":
		return pipeline.Task{
			Name:     name,
			Interval: taskInterval(d.cfg.Runner.QualityInterval),
			Run: func(ctx context.Context) error {
				_, err := d.analyzer.Run(ctx, quality.RunOptions{Requeue: true})
				return err
			},
		}, nil
	default:
		return pipeline.Task{}, fmt.Errorf("unknown task %q", name)
	}
}

func taskInterval(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Package linker maintains the credit graph between content and people.
// The content pass hands over a title's full cast and crew after each
// detail fetch; the people pass hands over person-side filmographies.
// Links only land for titles the catalog already holds, and everyone
// credited gets at least a stub record plus a queue entry so enrichment
// reaches them later.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
)

// Store is the catalog slice the linker writes through.
type Store interface {
	SeedPeople(ctx context.Context, people []*catalog.Person) (int, error)
	ReplaceContentCredits(ctx context.Context, contentID int64, mediaType catalog.ItemType, cast []catalog.CastCredit, crew []catalog.CrewCredit) error
	MergeCredits(ctx context.Context, cast []catalog.CastCredit, crew []catalog.CrewCredit) error
	MissingCreditPeople(ctx context.Context, limit int) ([]int64, error)
	EnqueueBatch(ctx context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error)
	ContentIDs(ctx context.Context, mediaType catalog.ItemType) (map[int64]struct{}, error)
}

// ContentCredits is one title's credit block as fetched from the source.
type ContentCredits struct {
	ContentID int64
	MediaType catalog.ItemType
	Cast      []catalog.CastCredit
	Crew      []catalog.CrewCredit
	// People holds stub records for everyone credited, seeded before the
	// links so the people table never trails the link tables.
	People []*catalog.Person
}

// Stats summarizes one linking call.
type Stats struct {
	PeopleSeeded int
	CastLinks    int
	CrewLinks    int
	Matched      int
	Enqueued     int
	Raised       int
	Failures     int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.PeopleSeeded += other.PeopleSeeded
	s.CastLinks += other.CastLinks
	s.CrewLinks += other.CrewLinks
	s.Matched += other.Matched
	s.Enqueued += other.Enqueued
	s.Raised += other.Raised
	s.Failures += other.Failures
}

// Linker wires credits into the catalog and keeps the person queue fed.
type Linker struct {
	store      Store
	logger     *slog.Logger
	priority   int
	cycleCount int
}

// New builds a linker. Credited people are enqueued at ingest priority
// since their records start as stubs, same as freshly harvested titles.
func New(store Store, cfg *config.Config, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Linker{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "linker"),
		priority:   cfg.Harvest.IngestPriority,
		cycleCount: cfg.Enrichment.CycleCount,
	}
}

// LinkContentBatch seeds stub people and replaces the credit link set for
// each title, then enqueues every credited person in one batch. Titles fail
// independently: a broken credit block never blocks the rest of the batch.
func (l *Linker) LinkContentBatch(ctx context.Context, batch []ContentCredits) (Stats, error) {
	var stats Stats
	personIDs := make(map[int64]struct{})

	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		seeded, err := l.store.SeedPeople(ctx, item.People)
		if err != nil {
			stats.Failures++
			l.logger.Warn("seeding credited people failed",
				logging.Int64("content_id", item.ContentID),
				logging.String("media_type", string(item.MediaType)),
				logging.Error(err))
			continue
		}
		stats.PeopleSeeded += seeded

		if err := l.store.ReplaceContentCredits(ctx, item.ContentID, item.MediaType, item.Cast, item.Crew); err != nil {
			stats.Failures++
			l.logger.Warn("replacing credit links failed",
				logging.Int64("content_id", item.ContentID),
				logging.String("media_type", string(item.MediaType)),
				logging.Error(err))
			continue
		}
		stats.Matched++
		stats.CastLinks += len(item.Cast)
		stats.CrewLinks += len(item.Crew)
		for _, credit := range item.Cast {
			if credit.PersonID > 0 {
				personIDs[credit.PersonID] = struct{}{}
			}
		}
		for _, credit := range item.Crew {
			if credit.PersonID > 0 {
				personIDs[credit.PersonID] = struct{}{}
			}
		}
	}

	if len(personIDs) > 0 {
		ids := make([]int64, 0, len(personIDs))
		for id := range personIDs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		result, err := l.store.EnqueueBatch(ctx, catalog.ItemTypePerson, ids, l.priority, l.cycleCount)
		if err != nil {
			return stats, fmt.Errorf("enqueue credited people: %w", err)
		}
		stats.Enqueued = result.Inserted
		stats.Raised = result.Raised
	}
	return stats, nil
}

// LinkPeopleBatch records person-side filmography links for titles already
// in the catalog. Credits against unknown titles are dropped: the harvest
// strategies own corpus growth, and a filmography row is not evidence the
// title is wanted. Crew credits without a job are dropped too since the job
// is part of the link key.
func (l *Linker) LinkPeopleBatch(ctx context.Context, cast []catalog.CastCredit, crew []catalog.CrewCredit) (Stats, error) {
	var stats Stats
	if len(cast) == 0 && len(crew) == 0 {
		return stats, nil
	}

	movies, err := l.store.ContentIDs(ctx, catalog.ItemTypeMovie)
	if err != nil {
		return stats, fmt.Errorf("load movie corpus: %w", err)
	}
	series, err := l.store.ContentIDs(ctx, catalog.ItemTypeSeries)
	if err != nil {
		return stats, fmt.Errorf("load series corpus: %w", err)
	}
	known := func(id int64, mediaType catalog.ItemType) bool {
		switch mediaType {
		case catalog.ItemTypeMovie:
			_, ok := movies[id]
			return ok
		case catalog.ItemTypeSeries:
			_, ok := series[id]
			return ok
		default:
			return false
		}
	}

	var keptCast []catalog.CastCredit
	for _, credit := range cast {
		if known(credit.ContentID, credit.MediaType) {
			keptCast = append(keptCast, credit)
		}
	}
	var keptCrew []catalog.CrewCredit
	for _, credit := range crew {
		if credit.Job == "" {
			continue
		}
		if known(credit.ContentID, credit.MediaType) {
			keptCrew = append(keptCrew, credit)
		}
	}

	if err := l.store.MergeCredits(ctx, keptCast, keptCrew); err != nil {
		return stats, fmt.Errorf("merge person credits: %w", err)
	}
	stats.CastLinks = len(keptCast)
	stats.CrewLinks = len(keptCrew)
	stats.Matched = len(keptCast) + len(keptCrew)

	if dropped := len(cast) + len(crew) - stats.Matched; dropped > 0 {
		l.logger.Debug("dropped credits for titles outside the corpus",
			logging.Int("dropped", dropped),
			logging.Int("kept", stats.Matched))
	}
	return stats, nil
}

// ReverseSweep enqueues people referenced by credit links but missing from
// the people table. Stub seeding normally keeps this empty; the sweep
// repairs databases written before seeding or edited by hand.
func (l *Linker) ReverseSweep(ctx context.Context, limit int) (catalog.EnqueueResult, error) {
	ids, err := l.store.MissingCreditPeople(ctx, limit)
	if err != nil {
		return catalog.EnqueueResult{}, fmt.Errorf("find missing credit people: %w", err)
	}
	if len(ids) == 0 {
		return catalog.EnqueueResult{}, nil
	}
	result, err := l.store.EnqueueBatch(ctx, catalog.ItemTypePerson, ids, l.priority, l.cycleCount)
	if err != nil {
		return catalog.EnqueueResult{}, fmt.Errorf("enqueue missing people: %w", err)
	}
	l.logger.Info("reverse sweep enqueued missing people",
		logging.Int("found", len(ids)),
		logging.Int("inserted", result.Inserted))
	return result, nil
}

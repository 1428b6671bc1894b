// Package tracker keeps stored records fresh by following the primary
// source's recent-changes feed. Changed ids already in the catalog are
// reopened for re-enrichment at refresh priority; changed content ids the
// catalog has never seen go to the ingest path instead. Unknown people are
// ignored: person rows only enter the catalog through credit links.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
)

// Source is the slice of the primary source client the tracker follows.
type Source interface {
	Changes(ctx context.Context, kind tmdb.ChangesKind, start, end time.Time, page int) (*tmdb.ChangesPage, error)
}

// Catalog is the store slice the tracker matches against and feeds.
// Requeue reopens finished work for known ids; EnqueueBatch keeps fresh
// ids on the ordinary ingest path.
type Catalog interface {
	ContentIDs(ctx context.Context, mediaType catalog.ItemType) (map[int64]struct{}, error)
	PersonIDs(ctx context.Context) (map[int64]struct{}, error)
	EnqueueBatch(ctx context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error)
	Requeue(ctx context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error)
}

// FeedStats counts one feed surface of a sync run.
type FeedStats struct {
	// Pages actually fetched from the feed.
	Pages int
	// Changed is how many distinct ids the window reported.
	Changed int
	// Refreshed is how many known ids were reopened for enrichment.
	Refreshed int
	// Ingested is how many previously unseen content ids were queued.
	Ingested int
}

// Result summarizes a sync run per feed surface.
type Result struct {
	Movies FeedStats
	Series FeedStats
	People FeedStats
}

// RunOptions narrows a sync run.
type RunOptions struct {
	// Days overrides the configured look-back window when positive.
	Days int
	// Types is the subset of surfaces to walk; all three when empty.
	Types []catalog.ItemType
}

// Tracker follows the changes feed and routes changed ids into the queue.
type Tracker struct {
	source Source
	store  Catalog
	logger *slog.Logger

	daysBack        int
	pageCap         int
	refreshPriority int
	ingestPriority  int
	cycleCount      int
}

// New builds a tracker from the sync configuration section.
func New(source Source, store Catalog, cfg *config.Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		source:          source,
		store:           store,
		logger:          logging.NewComponentLogger(logger, "tracker"),
		daysBack:        cfg.Sync.DaysBack,
		pageCap:         cfg.Sync.PageCap,
		refreshPriority: cfg.Sync.RefreshPriority,
		ingestPriority:  cfg.Harvest.IngestPriority,
		cycleCount:      cfg.Enrichment.CycleCount,
	}
}

// Run walks the changes feed for each requested surface and routes the
// collected ids. Feed errors degrade a surface to the pages already
// fetched; store errors abort the run.
func (t *Tracker) Run(ctx context.Context, opts RunOptions) (Result, error) {
	var result Result
	days := t.daysBack
	if opts.Days > 0 {
		days = opts.Days
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	types := opts.Types
	if len(types) == 0 {
		types = catalog.AllItemTypes()
	}
	for _, itemType := range types {
		target := result.surface(itemType)
		if target == nil {
			t.logger.Warn("unknown sync surface requested",
				logging.String(logging.FieldItemType, string(itemType)))
			continue
		}
		stats, err := t.syncSurface(ctx, itemType, start, end)
		*target = stats
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Result) surface(itemType catalog.ItemType) *FeedStats {
	switch itemType {
	case catalog.ItemTypeMovie:
		return &r.Movies
	case catalog.ItemTypeSeries:
		return &r.Series
	case catalog.ItemTypePerson:
		return &r.People
	default:
		return nil
	}
}

func (t *Tracker) syncSurface(ctx context.Context, itemType catalog.ItemType, start, end time.Time) (FeedStats, error) {
	var stats FeedStats
	changed := t.collect(ctx, changesKind(itemType), start, end, &stats)
	stats.Changed = len(changed)
	if len(changed) == 0 {
		return stats, ctx.Err()
	}

	known, err := t.knownIDs(ctx, itemType)
	if err != nil {
		return stats, fmt.Errorf("load known %s ids: %w", itemType, err)
	}

	var matched, fresh []int64
	for _, id := range changed {
		if _, ok := known[id]; ok {
			matched = append(matched, id)
		} else if itemType != catalog.ItemTypePerson {
			fresh = append(fresh, id)
		}
	}

	if len(matched) > 0 {
		res, err := t.store.Requeue(ctx, itemType, matched, t.refreshPriority, t.cycleCount)
		if err != nil {
			return stats, fmt.Errorf("requeue changed %s items: %w", itemType, err)
		}
		stats.Refreshed = res.Inserted + res.Raised
	}
	if len(fresh) > 0 {
		res, err := t.store.EnqueueBatch(ctx, itemType, fresh, t.ingestPriority, t.cycleCount)
		if err != nil {
			return stats, fmt.Errorf("enqueue new %s items: %w", itemType, err)
		}
		stats.Ingested = res.Inserted + res.Raised
	}

	t.logger.Info("surface synced",
		logging.String(logging.FieldItemType, string(itemType)),
		logging.Int("pages", stats.Pages),
		logging.Int("changed", stats.Changed),
		logging.Int("refreshed", stats.Refreshed),
		logging.Int("ingested", stats.Ingested))
	return stats, nil
}

// collect pages through one feed surface. A failed page stops the walk
// and keeps what earlier pages reported.
func (t *Tracker) collect(ctx context.Context, kind tmdb.ChangesKind, start, end time.Time, stats *FeedStats) []int64 {
	seen := make(map[int64]struct{})
	for page := 1; page <= t.pageCap; page++ {
		if ctx.Err() != nil {
			break
		}
		feed, err := t.source.Changes(ctx, kind, start, end, page)
		if err != nil {
			t.logger.Warn("changes page failed",
				logging.String("kind", string(kind)),
				logging.Int("page", page),
				logging.Error(err))
			break
		}
		stats.Pages++
		if len(feed.Results) == 0 {
			break
		}
		for _, entry := range feed.Results {
			if entry.ID > 0 {
				seen[entry.ID] = struct{}{}
			}
		}
		if page >= feed.TotalPages {
			break
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Tracker) knownIDs(ctx context.Context, itemType catalog.ItemType) (map[int64]struct{}, error) {
	if itemType == catalog.ItemTypePerson {
		return t.store.PersonIDs(ctx)
	}
	return t.store.ContentIDs(ctx, itemType)
}

func changesKind(itemType catalog.ItemType) tmdb.ChangesKind {
	switch itemType {
	case catalog.ItemTypeSeries:
		return tmdb.ChangesTV
	case catalog.ItemTypePerson:
		return tmdb.ChangesPerson
	default:
		return tmdb.ChangesMovie
	}
}

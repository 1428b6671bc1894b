// Package harvest collects external ids through three complementary
// strategies: breadth enumeration of regional listings, sequential scans of
// the id space, and the recent-changes feed. Strategy results are unioned,
// deduplicated against the stored corpus in one set difference, and the
// survivors bulk-enqueued for enrichment.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/fetch"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
)

// Strategy names accepted by Run and the configuration.
const (
	StrategyBreadth    = "breadth"
	StrategySequential = "sequential"
	StrategyDelta      = "delta"
)

// Source is the slice of the TMDB client the harvester drives.
type Source interface {
	Discover(ctx context.Context, kind tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error)
	Detail(ctx context.Context, kind tmdb.Kind, id int64) (*tmdb.Detail, error)
	Changes(ctx context.Context, kind tmdb.ChangesKind, start, end time.Time, page int) (*tmdb.ChangesPage, error)
	LatestID(ctx context.Context, kind tmdb.Kind) (int64, error)
}

// Catalog is the store slice the harvester needs: a corpus snapshot for the
// dedup pass and bulk enqueue for the survivors.
type Catalog interface {
	ContentIDs(ctx context.Context, mediaType catalog.ItemType) (map[int64]struct{}, error)
	EnqueueBatch(ctx context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error)
}

// Harvester discovers external ids and feeds new ones into the work queue.
type Harvester struct {
	source Source
	store  Catalog
	logger *slog.Logger

	regions    []RegionGroup
	sorts      []string
	strategies []string
	maxPages   int
	chunkSize  int
	gateWidth  int
	daysBack   int
	pageCap    int
	priority   int
	cycleCount int
}

// Option adjusts harvester construction.
type Option func(*Harvester)

// WithRegions overrides the region table enumerated by the breadth strategy.
func WithRegions(regions []RegionGroup) Option {
	return func(h *Harvester) {
		if len(regions) > 0 {
			h.regions = regions
		}
	}
}

// WithSortOrders overrides the discover sort rotations.
func WithSortOrders(orders []string) Option {
	return func(h *Harvester) {
		if len(orders) > 0 {
			h.sorts = orders
		}
	}
}

// New builds a harvester with strategy tuning taken from the configuration.
func New(cfg *config.Config, source Source, store Catalog, logger *slog.Logger, opts ...Option) *Harvester {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Harvester{
		source:     source,
		store:      store,
		logger:     logger,
		regions:    DefaultRegions(),
		sorts:      DefaultSortOrders(),
		strategies: cfg.Harvest.Strategies,
		maxPages:   cfg.Harvest.MaxPagesPerRegion,
		chunkSize:  cfg.Harvest.SequentialChunkSize,
		gateWidth:  cfg.Harvest.SequentialGateWidth,
		daysBack:   cfg.Harvest.DeltaDaysBack,
		pageCap:    cfg.Harvest.ChangesPageCap,
		priority:   cfg.Harvest.IngestPriority,
		cycleCount: cfg.Enrichment.CycleCount,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunOptions selects what one harvest pass covers.
type RunOptions struct {
	// Types to harvest; movies and series when empty.
	Types []catalog.ItemType
	// Strategies to run in order; the configured list when empty.
	Strategies []string
	// SequentialStart bounds the sequential scan from below; 1 when unset.
	SequentialStart int64
	// SequentialEnd bounds the sequential scan from above; the latest known
	// id when unset.
	SequentialEnd int64
	// DryRun computes the dedup result without enqueueing anything.
	DryRun bool
}

// Result summarizes one harvest pass for one item type.
type Result struct {
	ItemType   catalog.ItemType
	Breadth    int
	Sequential int
	Delta      int
	Harvested  int
	New        int
	Duplicates int
	Enqueued   int
	Raised     int
}

// Run executes the selected strategies per item type, deduplicates the union
// against the corpus, and enqueues what is genuinely new. Strategy failures
// are isolated; corpus or queue failures abort the run.
func (h *Harvester) Run(ctx context.Context, opts RunOptions) ([]Result, error) {
	types := opts.Types
	if len(types) == 0 {
		types = []catalog.ItemType{catalog.ItemTypeMovie, catalog.ItemTypeSeries}
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = h.strategies
	}

	results := make([]Result, 0, len(types))
	for _, itemType := range types {
		result, err := h.runType(ctx, itemType, strategies, opts)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (h *Harvester) runType(ctx context.Context, itemType catalog.ItemType, strategies []string, opts RunOptions) (Result, error) {
	result := Result{ItemType: itemType}
	kind := kindFor(itemType)
	union := make(map[int64]struct{})

	for _, strategy := range strategies {
		var (
			ids map[int64]struct{}
			err error
		)
		switch strategy {
		case StrategyBreadth:
			ids, err = h.breadth(ctx, kind)
			result.Breadth = len(ids)
		case StrategySequential:
			ids, err = h.sequential(ctx, kind, opts.SequentialStart, opts.SequentialEnd)
			result.Sequential = len(ids)
		case StrategyDelta:
			ids, err = h.delta(ctx, kind)
			result.Delta = len(ids)
		default:
			h.logger.Warn("skipping unknown harvest strategy", logging.String("strategy", strategy))
			continue
		}
		for id := range ids {
			union[id] = struct{}{}
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, err
			}
			// One strategy failing must not cost us the ids the others found.
			h.logger.Warn("harvest strategy failed",
				logging.String("strategy", strategy),
				logging.String("item_type", string(itemType)),
				logging.Error(err))
		}
	}
	result.Harvested = len(union)

	corpus, err := h.store.ContentIDs(ctx, itemType)
	if err != nil {
		return result, fmt.Errorf("corpus snapshot for %s: %w", itemType, err)
	}
	newIDs := make([]int64, 0, len(union))
	for id := range union {
		if _, known := corpus[id]; !known {
			newIDs = append(newIDs, id)
		}
	}
	slices.Sort(newIDs)
	result.New = len(newIDs)
	result.Duplicates = result.Harvested - result.New

	h.logger.Info("harvest pass deduplicated",
		logging.String("item_type", string(itemType)),
		logging.Int("harvested", result.Harvested),
		logging.Int("new", result.New),
		logging.Int("duplicates", result.Duplicates))

	if opts.DryRun || len(newIDs) == 0 {
		return result, nil
	}
	enqueued, err := h.store.EnqueueBatch(ctx, itemType, newIDs, h.priority, h.cycleCount)
	if err != nil {
		return result, fmt.Errorf("enqueue %s harvest batch: %w", itemType, err)
	}
	result.Enqueued = enqueued.Inserted
	result.Raised = enqueued.Raised
	return result, nil
}

// breadth walks every (country, sort order) listing combination up to the
// page cap. A failing combination is abandoned without touching the rest.
func (h *Harvester) breadth(ctx context.Context, kind tmdb.Kind) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	for _, group := range h.regions {
		for _, country := range group.Countries {
			for _, sortOrder := range h.sorts {
				if err := ctx.Err(); err != nil {
					return found, err
				}
				h.crawlListing(ctx, kind, country, sortOrder, found)
			}
		}
	}
	return found, nil
}

func (h *Harvester) crawlListing(ctx context.Context, kind tmdb.Kind, country, sortOrder string, found map[int64]struct{}) {
	for page := 1; page <= h.maxPages; page++ {
		listing, err := h.source.Discover(ctx, kind, tmdb.DiscoverOptions{
			OriginCountry: country,
			SortBy:        sortOrder,
			Page:          page,
		})
		if err != nil {
			h.logger.Warn("discover page failed",
				logging.String("country", country),
				logging.String("sort", sortOrder),
				logging.Int("page", page),
				logging.Error(err))
			return
		}
		if len(listing.Results) == 0 {
			return
		}
		for _, entry := range listing.Results {
			if entry.ID > 0 {
				found[entry.ID] = struct{}{}
			}
		}
		if page >= listing.TotalPages {
			return
		}
	}
}

// sequential existence-checks the id space [from, to] in fixed chunks, each
// chunk fanned out through the concurrency gate. Not-found ids are simply
// absent; other failures cost only their own slot.
func (h *Harvester) sequential(ctx context.Context, kind tmdb.Kind, from, to int64) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	if from < 1 {
		from = 1
	}
	if to < from {
		latest, err := h.source.LatestID(ctx, kind)
		if err != nil {
			return found, fmt.Errorf("latest id: %w", err)
		}
		to = latest
	}
	h.logger.Info("sequential scan starting",
		logging.String("kind", string(kind)),
		logging.Int64("from", from),
		logging.Int64("to", to))

	for start := from; start <= to; start += int64(h.chunkSize) {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		end := start + int64(h.chunkSize) - 1
		if end > to {
			end = to
		}
		ids := make([]int64, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
		results := fetch.Batch(ctx, h.gateWidth, ids, func(ctx context.Context, id int64) (int64, error) {
			detail, err := h.source.Detail(ctx, kind, id)
			if fetch.IsNotFound(err) {
				return 0, nil
			}
			if err != nil {
				return 0, err
			}
			return detail.ID, nil
		})
		for _, id := range fetch.Values(results) {
			if id > 0 {
				found[id] = struct{}{}
			}
		}
		if failed := fetch.FailureCount(results); failed > 0 {
			h.logger.Warn("sequential chunk had failures",
				logging.Int64("start", start),
				logging.Int64("end", end),
				logging.Int("failed", failed))
		}
	}
	return found, nil
}

// delta pages through the changes feed for the configured window.
func (h *Harvester) delta(ctx context.Context, kind tmdb.Kind) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	end := time.Now()
	start := end.AddDate(0, 0, -h.daysBack)

	for page := 1; page <= h.pageCap; page++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		feed, err := h.source.Changes(ctx, tmdb.ChangesKind(kind), start, end, page)
		if err != nil {
			h.logger.Warn("changes page failed",
				logging.String("kind", string(kind)),
				logging.Int("page", page),
				logging.Error(err))
			return found, nil
		}
		if len(feed.Results) == 0 {
			return found, nil
		}
		for _, entry := range feed.Results {
			if entry.ID > 0 {
				found[entry.ID] = struct{}{}
			}
		}
		if page >= feed.TotalPages {
			return found, nil
		}
	}
	return found, nil
}

func kindFor(itemType catalog.ItemType) tmdb.Kind {
	if itemType == catalog.ItemTypeSeries {
		return tmdb.KindTV
	}
	return tmdb.KindMovie
}

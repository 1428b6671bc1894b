package harvest_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/fetch"
	"gleaner/internal/harvest"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
)

type stubSource struct {
	discover func(ctx context.Context, kind tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error)
	detail   func(ctx context.Context, kind tmdb.Kind, id int64) (*tmdb.Detail, error)
	changes  func(ctx context.Context, kind tmdb.ChangesKind, start, end time.Time, page int) (*tmdb.ChangesPage, error)
	latest   func(ctx context.Context, kind tmdb.Kind) (int64, error)
}

func (s *stubSource) Discover(ctx context.Context, kind tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error) {
	if s.discover == nil {
		return &tmdb.Page{}, nil
	}
	return s.discover(ctx, kind, opts)
}

func (s *stubSource) Detail(ctx context.Context, kind tmdb.Kind, id int64) (*tmdb.Detail, error) {
	if s.detail == nil {
		return &tmdb.Detail{ID: id}, nil
	}
	return s.detail(ctx, kind, id)
}

func (s *stubSource) Changes(ctx context.Context, kind tmdb.ChangesKind, start, end time.Time, page int) (*tmdb.ChangesPage, error) {
	if s.changes == nil {
		return &tmdb.ChangesPage{}, nil
	}
	return s.changes(ctx, kind, start, end, page)
}

func (s *stubSource) LatestID(ctx context.Context, kind tmdb.Kind) (int64, error) {
	if s.latest == nil {
		return 0, nil
	}
	return s.latest(ctx, kind)
}

type enqueueCall struct {
	itemType catalog.ItemType
	ids      []int64
	priority int
	cycles   int
}

type stubCatalog struct {
	corpus     map[int64]struct{}
	contentErr error
	enqueueErr error
	enqueues   []enqueueCall
}

func (s *stubCatalog) ContentIDs(_ context.Context, _ catalog.ItemType) (map[int64]struct{}, error) {
	if s.contentErr != nil {
		return nil, s.contentErr
	}
	ids := make(map[int64]struct{}, len(s.corpus))
	for id := range s.corpus {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *stubCatalog) EnqueueBatch(_ context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error) {
	if s.enqueueErr != nil {
		return catalog.EnqueueResult{}, s.enqueueErr
	}
	s.enqueues = append(s.enqueues, enqueueCall{
		itemType: itemType,
		ids:      slices.Clone(ids),
		priority: priority,
		cycles:   cycleCount,
	})
	return catalog.EnqueueResult{Inserted: len(ids)}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Harvest.MaxPagesPerRegion = 5
	cfg.Harvest.SequentialChunkSize = 2
	cfg.Harvest.SequentialGateWidth = 1
	return &cfg
}

func newTestHarvester(cfg *config.Config, source *stubSource, store *stubCatalog) *harvest.Harvester {
	return harvest.New(cfg, source, store, logging.NewNop(),
		harvest.WithRegions([]harvest.RegionGroup{{Code: "KR", Countries: []string{"KR"}}}),
		harvest.WithSortOrders([]string{"popularity.desc"}),
	)
}

func TestRunDeduplicatesAgainstCorpus(t *testing.T) {
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, _ tmdb.DiscoverOptions) (*tmdb.Page, error) {
			return &tmdb.Page{
				Results:    []tmdb.ListEntry{{ID: 101}, {ID: 102}, {ID: 103}},
				TotalPages: 1,
			}, nil
		},
	}
	store := &stubCatalog{corpus: map[int64]struct{}{102: {}}}
	cfg := testConfig()
	harvester := newTestHarvester(cfg, source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	res := results[0]
	if res.Harvested != 3 || res.New != 2 || res.Duplicates != 1 {
		t.Fatalf("unexpected dedup counts: %+v", res)
	}
	if res.Enqueued != 2 {
		t.Fatalf("expected 2 enqueued, got %d", res.Enqueued)
	}
	if len(store.enqueues) != 1 {
		t.Fatalf("expected one enqueue call, got %d", len(store.enqueues))
	}
	call := store.enqueues[0]
	if call.itemType != catalog.ItemTypeMovie {
		t.Fatalf("unexpected enqueue item type: %s", call.itemType)
	}
	if !slices.Equal(call.ids, []int64{101, 103}) {
		t.Fatalf("unexpected enqueued ids: %v", call.ids)
	}
	if call.priority != cfg.Harvest.IngestPriority {
		t.Fatalf("unexpected enqueue priority: %d", call.priority)
	}
	if call.cycles != cfg.Enrichment.CycleCount {
		t.Fatalf("unexpected cycle count: %d", call.cycles)
	}
}

func TestRunDryRunSkipsEnqueue(t *testing.T) {
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, _ tmdb.DiscoverOptions) (*tmdb.Page, error) {
			return &tmdb.Page{
				Results:    []tmdb.ListEntry{{ID: 101}, {ID: 102}, {ID: 103}},
				TotalPages: 1,
			}, nil
		},
	}
	store := &stubCatalog{corpus: map[int64]struct{}{102: {}}}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
		DryRun:     true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res := results[0]; res.New != 2 || res.Enqueued != 0 {
		t.Fatalf("unexpected dry run result: %+v", res)
	}
	if len(store.enqueues) != 0 {
		t.Fatalf("dry run must not enqueue, got %d calls", len(store.enqueues))
	}
}

func TestRunDefaultsToMoviesAndSeries(t *testing.T) {
	var kinds []tmdb.Kind
	source := &stubSource{
		discover: func(_ context.Context, kind tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error) {
			if opts.Page == 1 {
				kinds = append(kinds, kind)
			}
			return &tmdb.Page{Results: []tmdb.ListEntry{{ID: 1}}, TotalPages: 1}, nil
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Strategies: []string{harvest.StrategyBreadth},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both item types, got %d", len(results))
	}
	if results[0].ItemType != catalog.ItemTypeMovie || results[1].ItemType != catalog.ItemTypeSeries {
		t.Fatalf("unexpected item type order: %s, %s", results[0].ItemType, results[1].ItemType)
	}
	if !slices.Equal(kinds, []tmdb.Kind{tmdb.KindMovie, tmdb.KindTV}) {
		t.Fatalf("unexpected discover kinds: %v", kinds)
	}
	if len(store.enqueues) != 2 {
		t.Fatalf("expected one enqueue per item type, got %d", len(store.enqueues))
	}
}

func TestRunIsolatesStrategyFailures(t *testing.T) {
	source := &stubSource{
		latest: func(_ context.Context, _ tmdb.Kind) (int64, error) {
			return 0, errors.New("latest endpoint down")
		},
		changes: func(_ context.Context, _ tmdb.ChangesKind, _, _ time.Time, _ int) (*tmdb.ChangesPage, error) {
			return &tmdb.ChangesPage{Results: []tmdb.ChangeEntry{{ID: 7}}, TotalPages: 1}, nil
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategySequential, harvest.StrategyDelta},
	})
	if err != nil {
		t.Fatalf("strategy failure must not abort the run: %v", err)
	}
	res := results[0]
	if res.Sequential != 0 || res.Delta != 1 || res.Harvested != 1 {
		t.Fatalf("unexpected counts after partial failure: %+v", res)
	}
	if len(store.enqueues) != 1 || !slices.Equal(store.enqueues[0].ids, []int64{7}) {
		t.Fatalf("expected delta ids to survive, got %+v", store.enqueues)
	}
}

func TestRunCorpusFailureAborts(t *testing.T) {
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, _ tmdb.DiscoverOptions) (*tmdb.Page, error) {
			return &tmdb.Page{Results: []tmdb.ListEntry{{ID: 1}}, TotalPages: 1}, nil
		},
	}
	store := &stubCatalog{contentErr: errors.New("database locked")}
	harvester := newTestHarvester(testConfig(), source, store)

	_, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
	})
	if err == nil {
		t.Fatal("expected corpus failure to abort the run")
	}
	if !strings.Contains(err.Error(), "corpus snapshot") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBreadthStopsAtTotalPages(t *testing.T) {
	var pages []int
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error) {
			pages = append(pages, opts.Page)
			return &tmdb.Page{
				Results:    []tmdb.ListEntry{{ID: int64(opts.Page * 10)}},
				TotalPages: 2,
			}, nil
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !slices.Equal(pages, []int{1, 2}) {
		t.Fatalf("expected crawl to stop at total_pages, got pages %v", pages)
	}
	if results[0].Breadth != 2 {
		t.Fatalf("unexpected breadth count: %d", results[0].Breadth)
	}
}

func TestBreadthStopsOnEmptyPage(t *testing.T) {
	calls := 0
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error) {
			calls++
			if opts.Page > 1 {
				return &tmdb.Page{TotalPages: 99}, nil
			}
			return &tmdb.Page{Results: []tmdb.ListEntry{{ID: 5}}, TotalPages: 99}, nil
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	if _, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected crawl to stop after the empty page, got %d calls", calls)
	}
}

func TestBreadthIsolatesFailingCombination(t *testing.T) {
	source := &stubSource{
		discover: func(_ context.Context, _ tmdb.Kind, opts tmdb.DiscoverOptions) (*tmdb.Page, error) {
			if opts.SortBy == "vote_count.desc" {
				return nil, errors.New("listing unavailable")
			}
			return &tmdb.Page{Results: []tmdb.ListEntry{{ID: 42}}, TotalPages: 1}, nil
		},
	}
	store := &stubCatalog{}
	cfg := testConfig()
	harvester := harvest.New(cfg, source, store, logging.NewNop(),
		harvest.WithRegions([]harvest.RegionGroup{{Code: "KR", Countries: []string{"KR"}}}),
		harvest.WithSortOrders([]string{"vote_count.desc", "popularity.desc"}),
	)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyBreadth},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if results[0].Breadth != 1 {
		t.Fatalf("expected the healthy listing to contribute, got %+v", results[0])
	}
	if len(store.enqueues) != 1 || !slices.Equal(store.enqueues[0].ids, []int64{42}) {
		t.Fatalf("unexpected enqueues: %+v", store.enqueues)
	}
}

func TestSequentialSkipsMissingIDs(t *testing.T) {
	source := &stubSource{
		detail: func(_ context.Context, _ tmdb.Kind, id int64) (*tmdb.Detail, error) {
			switch id {
			case 3:
				return nil, fetch.Wrap(fetch.ErrNotFound, "tmdb", "/movie/3", "status 404", nil)
			case 4:
				return nil, errors.New("gateway timeout")
			default:
				return &tmdb.Detail{ID: id}, nil
			}
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:           []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies:      []string{harvest.StrategySequential},
		SequentialStart: 1,
		SequentialEnd:   5,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if results[0].Sequential != 3 {
		t.Fatalf("unexpected sequential count: %d", results[0].Sequential)
	}
	if len(store.enqueues) != 1 || !slices.Equal(store.enqueues[0].ids, []int64{1, 2, 5}) {
		t.Fatalf("unexpected enqueues: %+v", store.enqueues)
	}
}

func TestSequentialUsesLatestIDWhenUnbounded(t *testing.T) {
	latestCalls := 0
	source := &stubSource{
		latest: func(_ context.Context, _ tmdb.Kind) (int64, error) {
			latestCalls++
			return 3, nil
		},
	}
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategySequential},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if latestCalls != 1 {
		t.Fatalf("expected one latest id lookup, got %d", latestCalls)
	}
	if results[0].Sequential != 3 {
		t.Fatalf("unexpected sequential count: %d", results[0].Sequential)
	}
	if len(store.enqueues) != 1 || !slices.Equal(store.enqueues[0].ids, []int64{1, 2, 3}) {
		t.Fatalf("unexpected enqueues: %+v", store.enqueues)
	}
}

func TestDeltaWindowAndPaging(t *testing.T) {
	var (
		window time.Duration
		pages  []int
	)
	source := &stubSource{
		changes: func(_ context.Context, _ tmdb.ChangesKind, start, end time.Time, page int) (*tmdb.ChangesPage, error) {
			window = end.Sub(start)
			pages = append(pages, page)
			return &tmdb.ChangesPage{
				Results:    []tmdb.ChangeEntry{{ID: int64(page * 11)}},
				TotalPages: 2,
			}, nil
		},
	}
	store := &stubCatalog{}
	cfg := testConfig()
	cfg.Harvest.DeltaDaysBack = 14
	harvester := newTestHarvester(cfg, source, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyDelta},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if window < 13*24*time.Hour || window > 15*24*time.Hour {
		t.Fatalf("unexpected changes window: %s", window)
	}
	if !slices.Equal(pages, []int{1, 2}) {
		t.Fatalf("expected paging to stop at total_pages, got %v", pages)
	}
	if results[0].Delta != 2 {
		t.Fatalf("unexpected delta count: %d", results[0].Delta)
	}
	if len(store.enqueues) != 1 || !slices.Equal(store.enqueues[0].ids, []int64{11, 22}) {
		t.Fatalf("unexpected enqueues: %+v", store.enqueues)
	}
}

func TestDeltaStopsAtPageCap(t *testing.T) {
	calls := 0
	source := &stubSource{
		changes: func(_ context.Context, _ tmdb.ChangesKind, _, _ time.Time, page int) (*tmdb.ChangesPage, error) {
			calls++
			return &tmdb.ChangesPage{
				Results:    []tmdb.ChangeEntry{{ID: int64(page)}},
				TotalPages: 99,
			}, nil
		},
	}
	store := &stubCatalog{}
	cfg := testConfig()
	cfg.Harvest.ChangesPageCap = 3
	harvester := newTestHarvester(cfg, source, store)

	if _, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{harvest.StrategyDelta},
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected the page cap to bound the crawl, got %d calls", calls)
	}
}

func TestRunSkipsUnknownStrategy(t *testing.T) {
	store := &stubCatalog{}
	harvester := newTestHarvester(testConfig(), &stubSource{}, store)

	results, err := harvester.Run(context.Background(), harvest.RunOptions{
		Types:      []catalog.ItemType{catalog.ItemTypeMovie},
		Strategies: []string{"depth"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if results[0].Harvested != 0 {
		t.Fatalf("unknown strategy must harvest nothing: %+v", results[0])
	}
	if len(store.enqueues) != 0 {
		t.Fatalf("unexpected enqueues: %+v", store.enqueues)
	}
}

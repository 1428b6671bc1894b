package quality_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/quality"
)

func TestScoreContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		record *catalog.Content
		want   int
	}{
		{"empty", &catalog.Content{}, 0},
		{"poster and overview", &catalog.Content{PosterPath: "/p.jpg", Overview: "A heist."}, 35},
		{"critical trio", &catalog.Content{PosterPath: "/p.jpg", Overview: "A heist.", Genres: []string{"Crime"}}, 53},
		{"everything", &catalog.Content{
			PosterPath:       "/p.jpg",
			Overview:         "A heist.",
			Genres:           []string{"Crime"},
			BackdropPath:     "/b.jpg",
			Keywords:         []string{"bank"},
			VideoCount:       1,
			ImageCount:       4,
			ProviderCount:    2,
			IMDBID:           "tt0113277",
			ContentRating:    "R",
			TranslationCount: 12,
		}, 100},
	}
	for _, tc := range cases {
		if got := quality.ScoreContent(tc.record); got != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScorePerson(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		record *catalog.Person
		want   int
	}{
		{"empty", &catalog.Person{}, 0},
		{"biography only", &catalog.Person{Biography: "Actor."}, 32},
		{"photo and biography", &catalog.Person{ProfilePath: "/f.jpg", Biography: "Actor."}, 63},
		{"everything", &catalog.Person{
			ProfilePath:  "/f.jpg",
			Biography:    "Actor.",
			Birthday:     "1964-09-02",
			PlaceOfBirth: "Beirut, Lebanon",
			AlsoKnownAs:  []string{"KR"},
			ImageCount:   3,
			CreditCount:  80,
			IMDBID:       "nm0000206",
			WikidataID:   "Q43416",
		}, 100},
	}
	for _, tc := range cases {
		if got := quality.ScorePerson(tc.record); got != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

type queueCall struct {
	itemType catalog.ItemType
	ids      []int64
	priority int
	cycles   int
}

type lowCall struct {
	threshold int
	limit     int
}

type fakeQualityStore struct {
	content map[catalog.ItemType][]*catalog.Content
	people  []*catalog.Person

	lowContent []catalog.ContentRef
	castLinks  int
	crewLinks  int
	scoreErr   error

	scoreWrites map[catalog.ItemType]map[int64]int
	lowCalls    []lowCall
	requeues    []queueCall
	saved       []*catalog.QualityReport
}

func (s *fakeQualityStore) ContentPage(_ context.Context, mediaType catalog.ItemType, afterID int64, limit int) ([]*catalog.Content, error) {
	var page []*catalog.Content
	for _, record := range s.content[mediaType] {
		if record.ID <= afterID {
			continue
		}
		page = append(page, record)
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (s *fakeQualityStore) PeoplePage(_ context.Context, afterID int64, limit int) ([]*catalog.Person, error) {
	var page []*catalog.Person
	for _, record := range s.people {
		if record.ID <= afterID {
			continue
		}
		page = append(page, record)
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (s *fakeQualityStore) UpdateQualityScores(_ context.Context, mediaType catalog.ItemType, scores map[int64]int) error {
	if s.scoreErr != nil {
		return s.scoreErr
	}
	if s.scoreWrites == nil {
		s.scoreWrites = make(map[catalog.ItemType]map[int64]int)
	}
	copied := make(map[int64]int, len(scores))
	for id, score := range scores {
		copied[id] = score
	}
	s.scoreWrites[mediaType] = copied
	return nil
}

func (s *fakeQualityStore) LowQualityContent(_ context.Context, threshold, limit int) ([]catalog.ContentRef, error) {
	s.lowCalls = append(s.lowCalls, lowCall{threshold: threshold, limit: limit})
	return s.lowContent, nil
}

func (s *fakeQualityStore) CreditCounts(context.Context) (int, int, error) {
	return s.castLinks, s.crewLinks, nil
}

func (s *fakeQualityStore) Requeue(_ context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error) {
	s.requeues = append(s.requeues, queueCall{
		itemType: itemType,
		ids:      append([]int64(nil), ids...),
		priority: priority,
		cycles:   cycleCount,
	})
	return catalog.EnqueueResult{Raised: len(ids)}, nil
}

func (s *fakeQualityStore) SaveQualityReport(_ context.Context, report *catalog.QualityReport) error {
	clone := *report
	s.saved = append(s.saved, &clone)
	return nil
}

func newTestAnalyzer(store *fakeQualityStore) *quality.Analyzer {
	cfg := config.Default()
	return quality.New(store, &cfg, logging.NewNop())
}

func scanFixtures() *fakeQualityStore {
	return &fakeQualityStore{
		content: map[catalog.ItemType][]*catalog.Content{
			catalog.ItemTypeMovie: {
				{ID: 603, MediaType: catalog.ItemTypeMovie, PosterPath: "/m.jpg", Overview: "A hacker wakes up.", Genres: []string{"Action"}, IMDBID: "tt0133093"},
				{ID: 999, MediaType: catalog.ItemTypeMovie},
			},
			catalog.ItemTypeSeries: {
				{ID: 1399, MediaType: catalog.ItemTypeSeries, PosterPath: "/t.jpg"},
			},
		},
		people: []*catalog.Person{
			{ID: 777, Popularity: 1.0, AlsoKnownAs: []string{"Someone"}},
			{ID: 6384, Popularity: 25.0, ProfilePath: "/k.jpg", Biography: "Actor.", Birthday: "1964-09-02"},
		},
		castLinks: 42,
		crewLinks: 17,
	}
}

func TestRunScoresAndPersists(t *testing.T) {
	t.Parallel()

	store := scanFixtures()
	analyzer := newTestAnalyzer(store)

	report, err := analyzer.Run(context.Background(), quality.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ID == "" {
		t.Fatal("report has no run id")
	}

	if report.Content.Total != 3 || report.Content.AverageScore != 25.7 || report.Content.LowCount != 2 {
		t.Fatalf("content summary = %+v", report.Content)
	}
	if report.Content.Distribution != (quality.Distribution{UpTo25: 2, UpTo75: 1}) {
		t.Fatalf("content distribution = %+v", report.Content.Distribution)
	}
	wantCoverage := []quality.FieldCoverage{
		{Field: "poster", Count: 2},
		{Field: "overview", Count: 1},
		{Field: "genres", Count: 1},
		{Field: "backdrop"},
		{Field: "keywords"},
		{Field: "videos"},
		{Field: "images"},
		{Field: "providers"},
		{Field: "imdb id", Count: 1},
		{Field: "rating"},
		{Field: "translations"},
	}
	if !reflect.DeepEqual(report.Content.Coverage, wantCoverage) {
		t.Fatalf("content coverage = %+v, want %+v", report.Content.Coverage, wantCoverage)
	}

	if report.People.Total != 2 || report.People.AverageScore != 36.5 || report.People.LowCount != 1 {
		t.Fatalf("people summary = %+v", report.People)
	}
	if report.People.Distribution != (quality.Distribution{UpTo25: 1, UpTo75: 1}) {
		t.Fatalf("people distribution = %+v", report.People.Distribution)
	}
	if report.CastLinks != 42 || report.CrewLinks != 17 {
		t.Fatalf("credit links = %d/%d", report.CastLinks, report.CrewLinks)
	}

	wantScores := map[catalog.ItemType]map[int64]int{
		catalog.ItemTypeMovie:  {603: 59, 999: 0},
		catalog.ItemTypeSeries: {1399: 18},
	}
	if !reflect.DeepEqual(store.scoreWrites, wantScores) {
		t.Fatalf("persisted scores = %+v, want %+v", store.scoreWrites, wantScores)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d reports, want 1", len(store.saved))
	}
	row := store.saved[0]
	if row.ID != report.ID || !row.RunAt.Equal(report.RunAt) {
		t.Fatalf("saved row identity = %s at %v", row.ID, row.RunAt)
	}
	if row.Total != 5 || row.AverageScore != 30 || row.LowCount != 3 || row.Requeued != 0 {
		t.Fatalf("saved row = %+v", row)
	}

	if store.requeues != nil || store.lowCalls != nil {
		t.Fatalf("scan without requeue touched the queue: %+v %+v", store.requeues, store.lowCalls)
	}
}

func TestRunRequeueSendsWorstBack(t *testing.T) {
	t.Parallel()

	store := scanFixtures()
	store.people = []*catalog.Person{
		{ID: 777, Popularity: 1.0, AlsoKnownAs: []string{"Someone"}},
		{ID: 888, Popularity: 9.0},
		{ID: 6384, Popularity: 25.0, ProfilePath: "/k.jpg", Biography: "Actor.", Birthday: "1964-09-02"},
	}
	store.lowContent = []catalog.ContentRef{
		{ID: 999, MediaType: catalog.ItemTypeMovie},
		{ID: 1399, MediaType: catalog.ItemTypeSeries},
	}
	analyzer := newTestAnalyzer(store)

	report, err := analyzer.Run(context.Background(), quality.RunOptions{Requeue: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantLow := []lowCall{{threshold: 50, limit: 100}}
	if !reflect.DeepEqual(store.lowCalls, wantLow) {
		t.Fatalf("low content lookups = %+v, want %+v", store.lowCalls, wantLow)
	}
	wantRequeues := []queueCall{
		{itemType: catalog.ItemTypeMovie, ids: []int64{999}, priority: 8, cycles: 9},
		{itemType: catalog.ItemTypeSeries, ids: []int64{1399}, priority: 8, cycles: 9},
		{itemType: catalog.ItemTypePerson, ids: []int64{888, 777}, priority: 8, cycles: 9},
	}
	if !reflect.DeepEqual(store.requeues, wantRequeues) {
		t.Fatalf("requeues = %+v, want %+v", store.requeues, wantRequeues)
	}

	if report.Content.Requeued != 2 || report.People.Requeued != 2 {
		t.Fatalf("requeued = %d content, %d people", report.Content.Requeued, report.People.Requeued)
	}
	if len(store.saved) != 1 || store.saved[0].Requeued != 4 {
		t.Fatalf("saved rows = %+v", store.saved)
	}
}

func TestRunAbortsOnStoreError(t *testing.T) {
	t.Parallel()

	store := scanFixtures()
	store.scoreErr = errors.New("disk full")
	analyzer := newTestAnalyzer(store)

	if _, err := analyzer.Run(context.Background(), quality.RunOptions{}); err == nil {
		t.Fatal("Run succeeded despite score write failure")
	}
	if len(store.saved) != 0 {
		t.Fatalf("aborted run saved %d reports", len(store.saved))
	}
}

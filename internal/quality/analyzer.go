package quality

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
)

// scanPageSize is how many stored records one walk step loads.
const scanPageSize = 1000

// Store is the catalog slice the analyzer scans, writes scores to, and
// requeues through.
type Store interface {
	ContentPage(ctx context.Context, mediaType catalog.ItemType, afterID int64, limit int) ([]*catalog.Content, error)
	PeoplePage(ctx context.Context, afterID int64, limit int) ([]*catalog.Person, error)
	UpdateQualityScores(ctx context.Context, mediaType catalog.ItemType, scores map[int64]int) error
	LowQualityContent(ctx context.Context, threshold, limit int) ([]catalog.ContentRef, error)
	CreditCounts(ctx context.Context) (castCount, crewCount int, err error)
	Requeue(ctx context.Context, itemType catalog.ItemType, ids []int64, priority, cycleCount int) (catalog.EnqueueResult, error)
	SaveQualityReport(ctx context.Context, report *catalog.QualityReport) error
}

// Distribution buckets normalized scores into the quartile bands the
// report prints.
type Distribution struct {
	UpTo25  int
	UpTo50  int
	UpTo75  int
	UpTo100 int
}

func (d *Distribution) bucket(score int) {
	switch {
	case score <= 25:
		d.UpTo25++
	case score <= 50:
		d.UpTo50++
	case score <= 75:
		d.UpTo75++
	default:
		d.UpTo100++
	}
}

// FieldCoverage counts how many records of a class carry one field.
type FieldCoverage struct {
	Field string
	Count int
}

// ClassSummary aggregates the scan over one record class.
type ClassSummary struct {
	Total        int
	AverageScore float64
	LowCount     int
	Requeued     int
	Distribution Distribution
	Coverage     []FieldCoverage
}

// Report is the outcome of one completeness scan.
type Report struct {
	ID        string
	RunAt     time.Time
	Content   ClassSummary
	People    ClassSummary
	CastLinks int
	CrewLinks int
}

// RunOptions toggles the repair half of a scan.
type RunOptions struct {
	// Requeue reopens the worst low scorers for another enrichment pass.
	Requeue bool
}

// Analyzer walks the catalog, scores every record, and persists both the
// per-record content scores and a per-run report row.
type Analyzer struct {
	store  Store
	logger *slog.Logger

	threshold  int
	top        int
	priority   int
	cycleCount int
}

// New builds an analyzer from the quality configuration section.
func New(store Store, cfg *config.Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "quality"),
		threshold:  cfg.Quality.RequeueThreshold,
		top:        cfg.Quality.RequeueTop,
		priority:   cfg.Quality.RequeuePriority,
		cycleCount: cfg.Enrichment.CycleCount,
	}
}

// personCandidate is a low-scoring person remembered for the requeue pick.
type personCandidate struct {
	id         int64
	popularity float64
}

// Run scans the whole catalog. Store errors abort the run; an aborted run
// saves no report row.
func (a *Analyzer) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{ID: uuid.NewString(), RunAt: time.Now().UTC()}
	logger := logging.WithRun(a.logger, report.ID)

	contentSum, err := a.scanContent(ctx, report)
	if err != nil {
		return nil, err
	}
	peopleSum, candidates, err := a.scanPeople(ctx, report)
	if err != nil {
		return nil, err
	}
	cast, crew, err := a.store.CreditCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count credit links: %w", err)
	}
	report.CastLinks, report.CrewLinks = cast, crew

	if opts.Requeue {
		if err := a.requeueWorst(ctx, logger, report, candidates); err != nil {
			return nil, err
		}
	}

	row := &catalog.QualityReport{
		ID:       report.ID,
		RunAt:    report.RunAt,
		Total:    report.Content.Total + report.People.Total,
		LowCount: report.Content.LowCount + report.People.LowCount,
		Requeued: report.Content.Requeued + report.People.Requeued,
	}
	if row.Total > 0 {
		row.AverageScore = round1(float64(contentSum+peopleSum) / float64(row.Total))
	}
	if err := a.store.SaveQualityReport(ctx, row); err != nil {
		return nil, err
	}

	logger.Info("completeness scan finished",
		logging.Int("content", report.Content.Total),
		logging.Int("people", report.People.Total),
		logging.Float64("average", row.AverageScore),
		logging.Int("low", row.LowCount),
		logging.Int("requeued", row.Requeued))
	return report, nil
}

func (a *Analyzer) scanContent(ctx context.Context, report *Report) (int, error) {
	summary := &report.Content
	summary.Coverage = coverageFor(contentChecks)

	sum := 0
	for _, mediaType := range []catalog.ItemType{catalog.ItemTypeMovie, catalog.ItemTypeSeries} {
		scores := make(map[int64]int)
		var afterID int64
		for {
			records, err := a.store.ContentPage(ctx, mediaType, afterID, scanPageSize)
			if err != nil {
				return 0, fmt.Errorf("page %s content: %w", mediaType, err)
			}
			if len(records) == 0 {
				break
			}
			for _, record := range records {
				if err := ctx.Err(); err != nil {
					return 0, err
				}
				afterID = record.ID
				score, hits := rate(record, contentChecks)
				scores[record.ID] = score
				sum += score
				summary.Total++
				summary.Distribution.bucket(score)
				a.countHits(summary.Coverage, hits)
				if score < a.threshold {
					summary.LowCount++
				}
			}
		}
		if err := a.store.UpdateQualityScores(ctx, mediaType, scores); err != nil {
			return 0, fmt.Errorf("persist %s scores: %w", mediaType, err)
		}
	}
	if summary.Total > 0 {
		summary.AverageScore = round1(float64(sum) / float64(summary.Total))
	}
	return sum, nil
}

func (a *Analyzer) scanPeople(ctx context.Context, report *Report) (int, []personCandidate, error) {
	summary := &report.People
	summary.Coverage = coverageFor(personChecks)

	sum := 0
	var candidates []personCandidate
	var afterID int64
	for {
		records, err := a.store.PeoplePage(ctx, afterID, scanPageSize)
		if err != nil {
			return 0, nil, fmt.Errorf("page people: %w", err)
		}
		if len(records) == 0 {
			break
		}
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
			afterID = record.ID
			score, hits := rate(record, personChecks)
			sum += score
			summary.Total++
			summary.Distribution.bucket(score)
			a.countHits(summary.Coverage, hits)
			if score < a.threshold {
				summary.LowCount++
				candidates = append(candidates, personCandidate{id: record.ID, popularity: record.Popularity})
			}
		}
	}
	if summary.Total > 0 {
		summary.AverageScore = round1(float64(sum) / float64(summary.Total))
	}
	return sum, candidates, nil
}

func (a *Analyzer) countHits(coverage []FieldCoverage, hits []bool) {
	for i, hit := range hits {
		if hit {
			coverage[i].Count++
		}
	}
}

// requeueWorst reopens the most popular low scorers. Content comes from
// the just-persisted score column; people scores are not stored, so the
// scan's own candidates are ranked instead.
func (a *Analyzer) requeueWorst(ctx context.Context, logger *slog.Logger, report *Report, people []personCandidate) error {
	refs, err := a.store.LowQualityContent(ctx, a.threshold, a.top)
	if err != nil {
		return err
	}
	byType := make(map[catalog.ItemType][]int64)
	for _, ref := range refs {
		byType[ref.MediaType] = append(byType[ref.MediaType], ref.ID)
	}
	for _, itemType := range []catalog.ItemType{catalog.ItemTypeMovie, catalog.ItemTypeSeries} {
		ids := byType[itemType]
		if len(ids) == 0 {
			continue
		}
		res, err := a.store.Requeue(ctx, itemType, ids, a.priority, a.cycleCount)
		if err != nil {
			return fmt.Errorf("requeue %s records: %w", itemType, err)
		}
		report.Content.Requeued += res.Inserted + res.Raised
	}

	slices.SortFunc(people, func(x, y personCandidate) int {
		if x.popularity != y.popularity {
			return cmp.Compare(y.popularity, x.popularity)
		}
		return cmp.Compare(x.id, y.id)
	})
	if len(people) > a.top {
		people = people[:a.top]
	}
	if len(people) > 0 {
		ids := make([]int64, len(people))
		for i, candidate := range people {
			ids[i] = candidate.id
		}
		res, err := a.store.Requeue(ctx, catalog.ItemTypePerson, ids, a.priority, a.cycleCount)
		if err != nil {
			return fmt.Errorf("requeue person records: %w", err)
		}
		report.People.Requeued = res.Inserted + res.Raised
	}

	logger.Info("low scorers requeued",
		logging.Int("content", report.Content.Requeued),
		logging.Int("people", report.People.Requeued))
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UpdateQualityScores writes computed completeness scores for one media
// type in a single transaction.
func (s *Store) UpdateQualityScores(ctx context.Context, mediaType ItemType, scores map[int64]int) error {
	if len(scores) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quality tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for id, score := range scores {
		if _, err := tx.ExecContext(ctx,
			`UPDATE content SET quality_score = ?, updated_at = ? WHERE id = ? AND media_type = ?`,
			score, timestamp, id, mediaType,
		); err != nil {
			return fmt.Errorf("update quality score %s %d: %w", mediaType, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quality scores: %w", err)
	}
	return nil
}

// LowQualityContent returns records scoring below threshold, most popular
// first, up to limit. These are the records worth re-enriching soonest.
func (s *Store) LowQualityContent(ctx context.Context, threshold, limit int) ([]ContentRef, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, media_type FROM content WHERE quality_score < ? ORDER BY popularity DESC, id LIMIT ?`,
		threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("select low quality content: %w", err)
	}
	defer rows.Close()

	var refs []ContentRef
	for rows.Next() {
		var ref ContentRef
		if err := rows.Scan(&ref.ID, &ref.MediaType); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// SaveQualityReport records the aggregate outcome of one completeness scan.
// The caller supplies the run id so report rows line up with log output.
func (s *Store) SaveQualityReport(ctx context.Context, report *QualityReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.ID == "" {
		return errors.New("report id is empty")
	}
	if report.RunAt.IsZero() {
		report.RunAt = time.Now().UTC()
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO quality_reports (id, run_at, total, average_score, low_count, requeued) VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.RunAt.UTC().Format(time.RFC3339Nano),
		report.Total,
		report.AverageScore,
		report.LowCount,
		report.Requeued,
	)
	if err != nil {
		return fmt.Errorf("save quality report: %w", err)
	}
	return nil
}

// ListQualityReports returns the most recent completeness reports, newest
// first.
func (s *Store) ListQualityReports(ctx context.Context, limit int) ([]*QualityReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_at, total, average_score, low_count, requeued FROM quality_reports ORDER BY run_at DESC, id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("select quality reports: %w", err)
	}
	defer rows.Close()

	var reports []*QualityReport
	for rows.Next() {
		var (
			report QualityReport
			runRaw string
		)
		if err := rows.Scan(&report.ID, &runRaw, &report.Total, &report.AverageScore, &report.LowCount, &report.Requeued); err != nil {
			return nil, err
		}
		if runAt, err := parseTimeString(runRaw); err == nil {
			report.RunAt = runAt
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

package catalog

import (
	"context"
	"fmt"
)

// First occurrence of a key wins. TMDB lists cast in billing order, so a
// person with several roles in one title keeps the best-billed one, and the
// people pass (whose credits carry no real billing order) can never stomp
// links the content pass wrote.
const (
	insertCastSQL = `INSERT OR IGNORE INTO content_cast (content_id, media_type, person_id, character, cast_order)
        VALUES (?, ?, ?, ?, ?)`
	insertCrewSQL = `INSERT OR IGNORE INTO content_crew (content_id, media_type, person_id, department, job)
        VALUES (?, ?, ?, ?, ?)`
)

// ReplaceContentCredits swaps the full cast and crew link set for one
// content record in a single transaction. The key columns come from the
// arguments, not the credits, so a replace can never write links for a
// different title. Linking is decoupled from the content upsert so a
// failure here never blocks the main record.
func (s *Store) ReplaceContentCredits(ctx context.Context, contentID int64, mediaType ItemType, cast []CastCredit, crew []CrewCredit) error {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credits tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM content_cast WHERE content_id = ? AND media_type = ?`, contentID, mediaType); err != nil {
		return fmt.Errorf("clear cast: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM content_crew WHERE content_id = ? AND media_type = ?`, contentID, mediaType); err != nil {
		return fmt.Errorf("clear crew: %w", err)
	}

	for _, credit := range cast {
		if _, err := tx.ExecContext(ctx, insertCastSQL,
			contentID, mediaType, credit.PersonID, credit.Character, credit.Order,
		); err != nil {
			return fmt.Errorf("insert cast credit: %w", err)
		}
	}
	for _, credit := range crew {
		if _, err := tx.ExecContext(ctx, insertCrewSQL,
			contentID, mediaType, credit.PersonID, credit.Department, credit.Job,
		); err != nil {
			return fmt.Errorf("insert crew credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credits: %w", err)
	}
	return nil
}

// MergeCredits layers credit links onto whatever already exists, keyed by
// each credit's own fields. Links already present are left untouched; the
// content pass owns their payload. The people pass uses it to record a
// person's filmography against known titles.
func (s *Store) MergeCredits(ctx context.Context, cast []CastCredit, crew []CrewCredit) error {
	if len(cast) == 0 && len(crew) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credits tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, credit := range cast {
		if _, err := tx.ExecContext(ctx, insertCastSQL,
			credit.ContentID, credit.MediaType, credit.PersonID, credit.Character, credit.Order,
		); err != nil {
			return fmt.Errorf("merge cast credit: %w", err)
		}
	}
	for _, credit := range crew {
		if _, err := tx.ExecContext(ctx, insertCrewSQL,
			credit.ContentID, credit.MediaType, credit.PersonID, credit.Department, credit.Job,
		); err != nil {
			return fmt.Errorf("merge crew credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credits: %w", err)
	}
	return nil
}

// CastForContent returns the cast links for one content record in billing
// order.
func (s *Store) CastForContent(ctx context.Context, contentID int64, mediaType ItemType) ([]CastCredit, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT content_id, media_type, person_id, character, cast_order FROM content_cast
        WHERE content_id = ? AND media_type = ? ORDER BY cast_order, person_id`,
		contentID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("select cast: %w", err)
	}
	defer rows.Close()

	var credits []CastCredit
	for rows.Next() {
		var credit CastCredit
		if err := rows.Scan(&credit.ContentID, &credit.MediaType, &credit.PersonID, &credit.Character, &credit.Order); err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

// CrewForContent returns the crew links for one content record.
func (s *Store) CrewForContent(ctx context.Context, contentID int64, mediaType ItemType) ([]CrewCredit, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT content_id, media_type, person_id, department, job FROM content_crew
        WHERE content_id = ? AND media_type = ? ORDER BY department, job, person_id`,
		contentID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("select crew: %w", err)
	}
	defer rows.Close()

	var credits []CrewCredit
	for rows.Next() {
		var credit CrewCredit
		if err := rows.Scan(&credit.ContentID, &credit.MediaType, &credit.PersonID, &credit.Department, &credit.Job); err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

// MissingCreditPeople returns person ids referenced by credit links but
// absent from the people table, up to limit. The reverse sweep enqueues
// these so every credited person eventually gets a record.
func (s *Store) MissingCreditPeople(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT DISTINCT person_id FROM (
            SELECT person_id FROM content_cast
            UNION
            SELECT person_id FROM content_crew
        ) WHERE person_id NOT IN (SELECT id FROM people) ORDER BY person_id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("select missing credit people: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreditCounts returns the total cast and crew link counts.
func (s *Store) CreditCounts(ctx context.Context) (castCount, crewCount int, err error) {
	ctx = ensureContext(ctx)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_cast`).Scan(&castCount); err != nil {
		return 0, 0, fmt.Errorf("count cast: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_crew`).Scan(&crewCount); err != nil {
		return 0, 0, fmt.Errorf("count crew: %w", err)
	}
	return castCount, crewCount, nil
}

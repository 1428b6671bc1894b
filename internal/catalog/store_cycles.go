package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cycle returns the active cursor for a scheduler class, starting at zero for
// classes never advanced.
func (s *Store) Cycle(ctx context.Context, class string) (int, error) {
	var cursor int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT cursor FROM cycle_state WHERE class = ?`, class).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cycle cursor: %w", err)
	}
	return cursor, nil
}

// AdvanceCycle moves the cursor for a scheduler class to (cursor+1) mod count
// and returns the new value. One step per call, regardless of how much work
// the cycle processed.
func (s *Store) AdvanceCycle(ctx context.Context, class string, count int) (int, error) {
	if count < 1 {
		count = 1
	}
	ctx = ensureContext(ctx)

	current, err := s.Cycle(ctx, class)
	if err != nil {
		return 0, err
	}
	next := (current + 1) % count

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO cycle_state (class, cursor, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(class) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		class, next, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return 0, fmt.Errorf("advance cycle cursor: %w", err)
	}
	return next, nil
}

// CycleCursors returns every scheduler class with its current cursor.
func (s *Store) CycleCursors(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT class, cursor FROM cycle_state`)
	if err != nil {
		return nil, fmt.Errorf("select cycle cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]int)
	for rows.Next() {
		var class string
		var cursor int
		if err := rows.Scan(&class, &cursor); err != nil {
			return nil, err
		}
		cursors[class] = cursor
	}
	return cursors, rows.Err()
}

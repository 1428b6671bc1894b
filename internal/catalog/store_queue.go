package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const workItemColumns = "id, natural_key, external_id, item_type, priority, cycle, status, reason, created_at, updated_at, processed_at"

func scanWorkItem(scanner interface{ Scan(dest ...any) error }) (*WorkItem, error) {
	var (
		id           int64
		naturalKey   string
		externalID   int64
		itemType     string
		priority     int
		cycle        int
		statusStr    string
		reason       sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		processedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&naturalKey,
		&externalID,
		&itemType,
		&priority,
		&cycle,
		&statusStr,
		&reason,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
	); err != nil {
		return nil, err
	}

	item := &WorkItem{
		ID:         id,
		NaturalKey: naturalKey,
		ExternalID: externalID,
		ItemType:   ItemType(itemType),
		Priority:   priority,
		Cycle:      cycle,
		Status:     Status(statusStr),
		Reason:     reason.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			item.ProcessedAt = &processed
		}
	}
	return item, nil
}

// Enqueue inserts or raises one pending work item.
func (s *Store) Enqueue(ctx context.Context, itemType ItemType, externalID int64, priority, cycleCount int) (EnqueueResult, error) {
	return s.EnqueueBatch(ctx, itemType, []int64{externalID}, priority, cycleCount)
}

// EnqueueBatch inserts pending work for each id, raising the priority of ids
// that are already pending. Ids whose items are processing, completed, or
// failed are skipped so enqueueing never duplicates a natural key or revives
// finished work. The cycle bucket is derived from the id so coverage spreads
// evenly across cycleCount buckets.
func (s *Store) EnqueueBatch(ctx context.Context, itemType ItemType, ids []int64, priority, cycleCount int) (EnqueueResult, error) {
	result := EnqueueResult{}
	if len(ids) == 0 {
		return result, nil
	}
	if cycleCount < 1 {
		cycleCount = 1
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		key := NaturalKey(itemType, id)
		var (
			statusStr   string
			priorityNow int
		)
		err := tx.QueryRowContext(ctx,
			`SELECT status, priority FROM work_items WHERE natural_key = ?`, key,
		).Scan(&statusStr, &priorityNow)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO work_items (natural_key, external_id, item_type, priority, cycle, status, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				key, id, itemType, priority, id%int64(cycleCount), StatusPending, timestamp, timestamp,
			); err != nil {
				return result, fmt.Errorf("insert work item: %w", err)
			}
			result.Inserted++
		case err != nil:
			return result, fmt.Errorf("check work item: %w", err)
		case Status(statusStr) == StatusPending && priority > priorityNow:
			if _, err := tx.ExecContext(ctx,
				`UPDATE work_items SET priority = ?, updated_at = ? WHERE natural_key = ?`,
				priority, timestamp, key,
			); err != nil {
				return result, fmt.Errorf("raise work item priority: %w", err)
			}
			result.Raised++
		default:
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit enqueue: %w", err)
	}
	return result, nil
}

// Requeue forces items back to pending regardless of current status, raising
// priority to at least the given value. Completeness scans use this to send
// finished records through another enrichment pass.
func (s *Store) Requeue(ctx context.Context, itemType ItemType, ids []int64, priority, cycleCount int) (EnqueueResult, error) {
	result := EnqueueResult{}
	if len(ids) == 0 {
		return result, nil
	}
	if cycleCount < 1 {
		cycleCount = 1
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin requeue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		key := NaturalKey(itemType, id)
		res, err := tx.ExecContext(ctx,
			`UPDATE work_items
             SET status = ?, priority = MAX(priority, ?), reason = NULL, processed_at = NULL, updated_at = ?
             WHERE natural_key = ?`,
			StatusPending, priority, timestamp, key,
		)
		if err != nil {
			return result, fmt.Errorf("reopen work item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			result.Raised++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO work_items (natural_key, external_id, item_type, priority, cycle, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			key, id, itemType, priority, id%int64(cycleCount), StatusPending, timestamp, timestamp,
		); err != nil {
			return result, fmt.Errorf("insert requeued item: %w", err)
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit requeue: %w", err)
	}
	return result, nil
}

// Dequeue claims up to limit pending items and marks them processing. Items
// come back in priority order, ties broken by insertion order.
func (s *Store) Dequeue(ctx context.Context, limit int, filter DequeueFilter) ([]*WorkItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)

	conditions := []string{"status = ?"}
	args := []any{StatusPending}
	if filter.ItemType != "" {
		conditions = append(conditions, "item_type = ?")
		args = append(args, filter.ItemType)
	}
	if filter.Cycle != nil {
		conditions = append(conditions, "cycle = ?")
		args = append(args, *filter.Cycle)
	}
	args = append(args, limit)

	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY priority DESC, id ASC LIMIT ?`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending items: %w", err)
	}
	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(items) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit dequeue: %w", err)
		}
		return nil, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	placeholders := makePlaceholders(len(items))
	claimArgs := make([]any, 0, len(items)+2)
	claimArgs = append(claimArgs, StatusProcessing, timestamp)
	for _, item := range items {
		claimArgs = append(claimArgs, item.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE work_items SET status = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
		claimArgs...,
	); err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue: %w", err)
	}

	for _, item := range items {
		item.Status = StatusProcessing
	}
	return items, nil
}

// MarkCompleted transitions claimed items to completed.
func (s *Store) MarkCompleted(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusCompleted, now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE work_items SET status = ?, reason = NULL, updated_at = ?, processed_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed transitions claimed items to failed, recording why. Failed rows
// stay visible for diagnostics and are never retried by the queue itself.
func (s *Store) MarkFailed(ctx context.Context, reason string, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusFailed, nullableString(reason), now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE work_items SET status = ?, reason = ?, updated_at = ?, processed_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// RetryFailed moves failed items back to pending for reprocessing. Without
// ids every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(ctx,
			`UPDATE work_items SET status = ?, reason = NULL, processed_at = NULL, updated_at = ? WHERE status = ?`,
			StatusPending, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET status = ?, reason = NULL, processed_at = NULL, updated_at = ? WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns items left processing by an interrupted run
// back to pending.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// GetWorkItem fetches a work item by its natural key.
func (s *Store) GetWorkItem(ctx context.Context, naturalKey string) (*WorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+workItemColumns+` FROM work_items WHERE natural_key = ?`, naturalKey)
	item, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// ListWork returns work items filtered by status set (or all items when no
// status is provided), newest first, up to limit (0 means no limit).
func (s *Store) ListWork(ctx context.Context, limit int, statuses ...Status) ([]*WorkItem, error) {
	ctx = ensureContext(ctx)

	query := `SELECT ` + workItemColumns + ` FROM work_items`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		query += ` WHERE status IN (` + placeholders + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// QueueStats returns work item counts grouped by status.
func (s *Store) QueueStats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// PendingByCycle returns pending counts per cycle bucket for one item type.
func (s *Store) PendingByCycle(ctx context.Context, itemType ItemType) (map[int]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT cycle, COUNT(1) FROM work_items WHERE status = ? AND item_type = ? GROUP BY cycle`,
		StatusPending, itemType)
	if err != nil {
		return nil, fmt.Errorf("pending by cycle: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var cycle, count int
		if err := rows.Scan(&cycle, &count); err != nil {
			return nil, err
		}
		counts[cycle] = count
	}
	return counts, rows.Err()
}

// ClearCompleted removes completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM work_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM work_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

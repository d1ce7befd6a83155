package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/maintainer"
	"github.com/geobase/geobase/internal/metrics"
	"github.com/geobase/geobase/internal/models"
)

const maxUpsertRetries = 3

// Upsert inserts e, or replaces the writable fields of the existing row
// sharing its (source, external_id) dedupe key, per spec.md §4.1. Returns
// the row's id and "inserted" or "updated".
func (s *Store) Upsert(ctx context.Context, e *models.Entity) (string, string, error) {
	start := time.Now()
	id, status, err := s.upsert(ctx, e)
	metrics.RecordDBQuery("upsert", time.Since(start), err)
	return id, status, err
}

func (s *Store) upsert(ctx context.Context, e *models.Entity) (string, string, error) {
	key := dedupeKey(e.Source, e.ExternalID)

	lockKey := e.ID.String()
	if key != nil {
		lockKey = *key
	}
	mu := s.acquireKeyLock(lockKey)
	defer s.releaseKeyLock(mu)

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	var id, status string
	var lastErr error

	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		id, status, lastErr = s.doUpsert(ctx, e, key)
		if lastErr == nil {
			return id, status, nil
		}
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("upsert timed out or canceled: %w", ctx.Err())
		}
		if isInternalError(lastErr) {
			return "", "", fmt.Errorf("internal store error (should not happen under per-key locking): %w", lastErr)
		}
		if isTransactionConflict(lastErr) && attempt < maxUpsertRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return "", "", ctx.Err()
			}
		}
		return "", "", lastErr
	}
	return "", "", fmt.Errorf("max upsert retries exceeded: %w", lastErr)
}

func (s *Store) doUpsert(ctx context.Context, e *models.Entity, key *string) (string, string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	var existingID string
	var existingCreatedAt time.Time
	found := false

	if key != nil {
		row := tx.QueryRowContext(ctx, "SELECT id, created_at FROM entities WHERE dedupe_key = ?", *key)
		switch err := row.Scan(&existingID, &existingCreatedAt); {
		case err == nil:
			found = true
		case err == sql.ErrNoRows:
			found = false
		default:
			return "", "", fmt.Errorf("lookup by dedupe key: %w", err)
		}
	}

	if found {
		parsedID, perr := parseUUID(existingID)
		if perr != nil {
			return "", "", fmt.Errorf("parse existing id: %w", perr)
		}
		e.ID = parsedID
		e.CreatedAt = existingCreatedAt
		maintainer.Apply(e, now, false)

		query, args := updateArgs(s, e, key)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return "", "", fmt.Errorf("update entity: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", "", fmt.Errorf("commit: %w", err)
		}
		return e.ID.String(), "updated", nil
	}

	if isZeroUUID(e.ID) {
		e.ID = newEntityID()
	}
	maintainer.Apply(e, now, true)

	query, args := insertArgs(s, e, key)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", "", fmt.Errorf("insert entity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit: %w", err)
	}
	return e.ID.String(), "inserted", nil
}

// BulkUpsert upserts a batch of entities in a single all-or-nothing
// transaction, serialized against other bulk batches by bulkMu so many
// dedupe keys can be touched without per-key lock-ordering concerns.
func (s *Store) BulkUpsert(ctx context.Context, entities []*models.Entity) ([]models.UpsertResult, error) {
	start := time.Now()
	results, err := s.bulkUpsert(ctx, entities)
	metrics.RecordDBQuery("bulk_upsert", time.Since(start), err)
	return results, err
}

func (s *Store) bulkUpsert(ctx context.Context, entities []*models.Entity) ([]models.UpsertResult, error) {
	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	results := make([]models.UpsertResult, 0, len(entities))

	for _, e := range entities {
		key := dedupeKey(e.Source, e.ExternalID)

		var existingID string
		var existingCreatedAt time.Time
		found := false
		if key != nil {
			row := tx.QueryRowContext(ctx, "SELECT id, created_at FROM entities WHERE dedupe_key = ?", *key)
			switch err := row.Scan(&existingID, &existingCreatedAt); {
			case err == nil:
				found = true
			case err == sql.ErrNoRows:
				found = false
			default:
				return nil, fmt.Errorf("lookup by dedupe key: %w", err)
			}
		}

		if found {
			parsedID, perr := parseUUID(existingID)
			if perr != nil {
				return nil, fmt.Errorf("parse existing id: %w", perr)
			}
			e.ID = parsedID
			e.CreatedAt = existingCreatedAt
			maintainer.Apply(e, now, false)

			query, args := updateArgs(s, e, key)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return nil, fmt.Errorf("update entity in batch: %w", err)
			}
			results = append(results, models.UpsertResult{ID: e.ID.String(), Status: "updated"})
			continue
		}

		if isZeroUUID(e.ID) {
			e.ID = newEntityID()
		}
		maintainer.Apply(e, now, true)

		query, args := insertArgs(s, e, key)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert entity in batch: %w", err)
		}
		results = append(results, models.UpsertResult{ID: e.ID.String(), Status: "inserted"})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk upsert: %w", err)
	}
	return results, nil
}

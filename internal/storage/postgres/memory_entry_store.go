package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// maxLessons caps stored lessons so memory stays bounded; the oldest are
// dropped first. Avoid and pattern entries are never evicted.
const maxLessons = 200

// MemoryEntryStore implements storage.MemoryEntryStore using PostgreSQL.
type MemoryEntryStore struct {
	pool *Pool
}

// NewMemoryEntryStore creates a new MemoryEntryStore.
func NewMemoryEntryStore(pool *Pool) *MemoryEntryStore {
	return &MemoryEntryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MemoryEntryStore = (*MemoryEntryStore)(nil)

const memoryEntryColumns = `
	entry_id, kind, token_address, reason, pattern, lesson, source, created_at
`

// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
func (s *MemoryEntryStore) Append(ctx context.Context, e *domain.MemoryEntry) error {
	if e == nil || e.EntryID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}
	if e.Kind == domain.MemoryKindAvoid && e.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO memory_entries (` + memoryEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EntryID, string(e.Kind), e.TokenAddress,
		e.Reason, e.Pattern, e.Lesson,
		e.Source, e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert memory entry: %w", err)
	}

	if e.Kind == domain.MemoryKindLesson {
		if err := s.evictLessons(ctx); err != nil {
			return fmt.Errorf("evict lessons: %w", err)
		}
	}
	return nil
}

// evictLessons deletes the oldest lessons beyond maxLessons.
func (s *MemoryEntryStore) evictLessons(ctx context.Context) error {
	query := `
		DELETE FROM memory_entries
		WHERE entry_id IN (
			SELECT entry_id FROM memory_entries
			WHERE kind = 'LESSON'
			ORDER BY created_at DESC, entry_id DESC
			OFFSET $1
		)
	`

	_, err := s.pool.Exec(ctx, query, maxLessons)
	return err
}

// GetByKind retrieves the most recent entries of a kind, ordered by
// created_at ASC within the result. limit <= 0 returns all.
func (s *MemoryEntryStore) GetByKind(ctx context.Context, kind domain.MemoryEntryKind, limit int) ([]*domain.MemoryEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if limit > 0 {
		query := `
			SELECT * FROM (
				SELECT ` + memoryEntryColumns + `
				FROM memory_entries
				WHERE kind = $1
				ORDER BY created_at DESC, entry_id DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC, entry_id ASC
		`
		rows, err = s.pool.Query(ctx, query, string(kind), limit)
	} else {
		query := `
			SELECT ` + memoryEntryColumns + `
			FROM memory_entries
			WHERE kind = $1
			ORDER BY created_at ASC, entry_id ASC
		`
		rows, err = s.pool.Query(ctx, query, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("get memory entries by kind: %w", err)
	}
	defer rows.Close()

	return scanMemoryEntries(rows)
}

// GetAvoid retrieves the avoid entry for a token.
func (s *MemoryEntryStore) GetAvoid(ctx context.Context, tokenAddress string) (*domain.MemoryEntry, error) {
	query := `
		SELECT ` + memoryEntryColumns + `
		FROM memory_entries
		WHERE kind = 'AVOID' AND token_address = $1
		ORDER BY created_at ASC, entry_id ASC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, tokenAddress)
	e, err := scanMemoryEntry(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get avoid entry: %w", err)
	}
	return e, nil
}

// scanMemoryEntry scans a single row into a MemoryEntry.
func scanMemoryEntry(row pgx.Row) (*domain.MemoryEntry, error) {
	var e domain.MemoryEntry
	var kind string

	err := row.Scan(
		&e.EntryID, &kind, &e.TokenAddress,
		&e.Reason, &e.Pattern, &e.Lesson,
		&e.Source, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.MemoryEntryKind(kind)
	return &e, nil
}

// scanMemoryEntries scans multiple rows into a slice of MemoryEntry.
func scanMemoryEntries(rows pgx.Rows) ([]*domain.MemoryEntry, error) {
	var entries []*domain.MemoryEntry

	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory entry row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory entry rows: %w", err)
	}

	return entries, nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// maxLessons caps stored lessons so memory stays bounded; the oldest are
// dropped first. Avoid and pattern entries are never evicted.
const maxLessons = 200

// MemoryEntryStore is an in-memory implementation of storage.MemoryEntryStore.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries []*domain.MemoryEntry // append order == created order
	ids     map[string]struct{}
}

// NewMemoryEntryStore creates a new in-memory memory entry store.
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{
		ids: make(map[string]struct{}),
	}
}

// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
func (s *MemoryEntryStore) Append(_ context.Context, e *domain.MemoryEntry) error {
	if e == nil || e.EntryID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}
	if e.Kind == domain.MemoryKindAvoid && e.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.EntryID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	s.entries = append(s.entries, &cp)
	s.ids[e.EntryID] = struct{}{}

	s.evictLessons()
	return nil
}

// evictLessons drops the oldest lessons beyond maxLessons. Caller holds mu.
func (s *MemoryEntryStore) evictLessons() {
	lessons := 0
	for _, e := range s.entries {
		if e.Kind == domain.MemoryKindLesson {
			lessons++
		}
	}
	if lessons <= maxLessons {
		return
	}

	drop := lessons - maxLessons
	kept := s.entries[:0]
	for _, e := range s.entries {
		if drop > 0 && e.Kind == domain.MemoryKindLesson {
			drop--
			delete(s.ids, e.EntryID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// GetByKind retrieves the most recent entries of a kind, ordered by
// created_at ASC within the result. limit <= 0 returns all.
func (s *MemoryEntryStore) GetByKind(_ context.Context, kind domain.MemoryEntryKind, limit int) ([]*domain.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MemoryEntry
	for _, e := range s.entries {
		if e.Kind == kind {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// GetAvoid retrieves the avoid entry for a token.
func (s *MemoryEntryStore) GetAvoid(_ context.Context, tokenAddress string) (*domain.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Kind == domain.MemoryKindAvoid && e.TokenAddress == tokenAddress {
			cp := *e
			return &cp, nil
		}
	}

	return nil, storage.ErrNotFound
}

var _ storage.MemoryEntryStore = (*MemoryEntryStore)(nil)

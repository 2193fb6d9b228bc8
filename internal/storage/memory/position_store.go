package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := clonePosition(p)
	s.data[p.PositionID] = cp
	return nil
}

// Update replaces a position by position_id. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}

	cp := clonePosition(p)
	s.data[p.PositionID] = cp
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return clonePosition(p), nil
}

// GetOpen retrieves all OPEN positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.State == domain.PositionStateOpen {
			result = append(result, clonePosition(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenedAt != result[j].OpenedAt {
			return result[i].OpenedAt < result[j].OpenedAt
		}
		return result[i].PositionID < result[j].PositionID
	})

	return result, nil
}

// GetOpenByToken retrieves the OPEN position for a token.
func (s *PositionStore) GetOpenByToken(_ context.Context, tokenAddress string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.TokenAddress == tokenAddress && p.State == domain.PositionStateOpen {
			return clonePosition(p), nil
		}
	}

	return nil, storage.ErrNotFound
}

// clonePosition copies a position including its flags slice, so callers
// never share backing arrays with the store.
func clonePosition(p *domain.Position) *domain.Position {
	cp := *p
	if p.EntryFlags != nil {
		cp.EntryFlags = make([]domain.ScoreFlag, len(p.EntryFlags))
		copy(cp.EntryFlags, p.EntryFlags)
	}
	return &cp
}

var _ storage.PositionStore = (*PositionStore)(nil)

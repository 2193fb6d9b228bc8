package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Insert adds a new trade record. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" || t.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.TradeID] = cloneTrade(t)
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return cloneTrade(t), nil
}

// GetByToken retrieves all trades for a token, ordered by closed_at ASC.
func (s *TradeRecordStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.TokenAddress == tokenAddress {
			result = append(result, cloneTrade(t))
		}
	}

	sortTrades(result)
	return result, nil
}

// GetAll retrieves all trades, ordered by closed_at ASC, trade_id ASC.
func (s *TradeRecordStore) GetAll(_ context.Context) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.data))
	for _, t := range s.data {
		result = append(result, cloneTrade(t))
	}

	sortTrades(result)
	return result, nil
}

// GetRecent retrieves the most recent trades. limit <= 0 returns all.
func (s *TradeRecordStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(all) <= limit {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

func sortTrades(trades []*domain.TradeRecord) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ClosedAt != trades[j].ClosedAt {
			return trades[i].ClosedAt < trades[j].ClosedAt
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

func cloneTrade(t *domain.TradeRecord) *domain.TradeRecord {
	cp := *t
	if t.EntryFlags != nil {
		cp.EntryFlags = make([]domain.ScoreFlag, len(t.EntryFlags))
		copy(cp.EntryFlags, t.EntryFlags)
	}
	return &cp
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

package storage

import (
	"context"

	"solana-trader/internal/domain"
)

// PositionStore provides access to positions storage. Positions are the only
// mutable records; all writes go through the position manager.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces a position by position_id. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetOpen retrieves all OPEN positions, ordered by opened_at ASC.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetOpenByToken retrieves the OPEN position for a token.
	// Returns ErrNotFound if the token has no open position.
	GetOpenByToken(ctx context.Context, tokenAddress string) (*domain.Position, error)
}

// TradeRecordStore provides access to trade_records storage. Append-only.
type TradeRecordStore interface {
	// Insert adds a new trade record. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByToken retrieves all trades for a token, ordered by closed_at ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error)

	// GetAll retrieves all trades, ordered by closed_at ASC, trade_id ASC.
	GetAll(ctx context.Context) ([]*domain.TradeRecord, error)

	// GetRecent retrieves the most recent trades, ordered by closed_at ASC
	// within the result. limit <= 0 returns all.
	GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)
}

// MemoryEntryStore provides access to memory_entries storage. Append-only;
// written only by the learner.
type MemoryEntryStore interface {
	// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
	Append(ctx context.Context, e *domain.MemoryEntry) error

	// GetByKind retrieves the most recent entries of a kind, ordered by
	// created_at ASC within the result. limit <= 0 returns all.
	GetByKind(ctx context.Context, kind domain.MemoryEntryKind, limit int) ([]*domain.MemoryEntry, error)

	// GetAvoid retrieves the avoid entry for a token.
	// Returns ErrNotFound if the token is not avoid-listed.
	GetAvoid(ctx context.Context, tokenAddress string) (*domain.MemoryEntry, error)
}

// TradeArchiveStore is the analytics sink for closed trades. Writes are
// best-effort; the engine's source of truth stays in TradeRecordStore.
type TradeArchiveStore interface {
	// Insert archives a closed trade.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// Summary computes aggregate performance over the archive.
	Summary(ctx context.Context) (*domain.TradeSummary, error)
}

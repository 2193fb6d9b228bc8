package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	trade_id, position_id, token_address, symbol,
	entry_price_usd, entry_size_sol, entry_score, entry_flags,
	entry_buy_ratio, entry_liquidity_usd,
	exit_price_usd, exit_size_sol, exit_reason,
	pnl_sol, pnl_pct, hold_duration_ms, closed_at, dry_run
`

// Insert adds a new trade record. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	query := `
		INSERT INTO trade_records (` + tradeRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.PositionID, t.TokenAddress, t.Symbol,
		t.EntryPriceUSD, t.EntrySizeSOL, t.EntryScore, flagsToStrings(t.EntryFlags),
		t.EntryBuyRatio, t.EntryLiquidityUSD,
		t.ExitPriceUSD, t.ExitSizeSOL, t.ExitReason,
		t.PnLSOL, t.PnLPct, t.HoldDurationMs, t.ClosedAt, t.DryRun,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token, ordered by closed_at ASC.
func (s *TradeRecordStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE token_address = $1
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get trade records by token: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetAll retrieves all trades, ordered by closed_at ASC, trade_id ASC.
func (s *TradeRecordStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetRecent retrieves the most recent trades, ordered by closed_at ASC
// within the result. limit <= 0 returns all.
func (s *TradeRecordStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return s.GetAll(ctx)
	}

	query := `
		SELECT * FROM (
			SELECT ` + tradeRecordColumns + `
			FROM trade_records
			ORDER BY closed_at DESC, trade_id DESC
			LIMIT $1
		) recent
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var flags []string

	err := row.Scan(
		&t.TradeID, &t.PositionID, &t.TokenAddress, &t.Symbol,
		&t.EntryPriceUSD, &t.EntrySizeSOL, &t.EntryScore, &flags,
		&t.EntryBuyRatio, &t.EntryLiquidityUSD,
		&t.ExitPriceUSD, &t.ExitSizeSOL, &t.ExitReason,
		&t.PnLSOL, &t.PnLPct, &t.HoldDurationMs, &t.ClosedAt, &t.DryRun,
	)
	if err != nil {
		return nil, err
	}

	t.EntryFlags = stringsToFlags(flags)
	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}

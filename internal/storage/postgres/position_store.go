package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, token_address, symbol,
	entry_price_usd, amount_tokens, entry_size_sol,
	entry_score, entry_flags, entry_buy_ratio, entry_liquidity_usd,
	stop_loss_price_usd, take_profit_price_usd,
	opened_at, closed_at, state, dry_run
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.TokenAddress, p.Symbol,
		p.EntryPriceUSD, p.AmountTokens, p.EntrySizeSOL,
		p.EntryScore, flagsToStrings(p.EntryFlags), p.EntryBuyRatio, p.EntryLiquidityUSD,
		p.StopLossPriceUSD, p.TakeProfitPriceUSD,
		p.OpenedAt, p.ClosedAt, string(p.State), p.DryRun,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces a position by position_id. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	query := `
		UPDATE positions SET
			stop_loss_price_usd = $2,
			take_profit_price_usd = $3,
			closed_at = $4,
			state = $5
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.StopLossPriceUSD, p.TakeProfitPriceUSD,
		p.ClosedAt, string(p.State),
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all OPEN positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE state = 'OPEN'
		ORDER BY opened_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetOpenByToken retrieves the OPEN position for a token.
func (s *PositionStore) GetOpenByToken(ctx context.Context, tokenAddress string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE token_address = $1 AND state = 'OPEN'
	`

	row := s.pool.QueryRow(ctx, query, tokenAddress)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position by token: %w", err)
	}
	return p, nil
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var flags []string
	var state string

	err := row.Scan(
		&p.PositionID, &p.TokenAddress, &p.Symbol,
		&p.EntryPriceUSD, &p.AmountTokens, &p.EntrySizeSOL,
		&p.EntryScore, &flags, &p.EntryBuyRatio, &p.EntryLiquidityUSD,
		&p.StopLossPriceUSD, &p.TakeProfitPriceUSD,
		&p.OpenedAt, &p.ClosedAt, &state, &p.DryRun,
	)
	if err != nil {
		return nil, err
	}

	p.EntryFlags = stringsToFlags(flags)
	p.State = domain.PositionState(state)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}

// flagsToStrings converts score flags to a text array for storage.
func flagsToStrings(flags []domain.ScoreFlag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

// stringsToFlags converts a stored text array back to score flags.
func stringsToFlags(ss []string) []domain.ScoreFlag {
	if len(ss) == 0 {
		return nil
	}
	out := make([]domain.ScoreFlag, len(ss))
	for i, s := range ss {
		out[i] = domain.ScoreFlag(s)
	}
	return out
}

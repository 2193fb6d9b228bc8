package clickhouse

import (
	"context"
	"fmt"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// TradeArchiveStore implements storage.TradeArchiveStore using ClickHouse.
// The archive is an analytics sink; the trade record store in Postgres stays
// the source of truth, so inserts here are fire-and-forget from the engine's
// point of view.
type TradeArchiveStore struct {
	conn *Conn
}

// NewTradeArchiveStore creates a new TradeArchiveStore.
func NewTradeArchiveStore(conn *Conn) *TradeArchiveStore {
	return &TradeArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchiveStore = (*TradeArchiveStore)(nil)

// Insert archives a closed trade.
func (s *TradeArchiveStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	query := `
		INSERT INTO trade_archive (
			trade_id, position_id, token_address, symbol,
			entry_price_usd, entry_size_sol, entry_score, entry_flags,
			entry_buy_ratio, entry_liquidity_usd,
			exit_price_usd, exit_size_sol, exit_reason,
			pnl_sol, pnl_pct, hold_duration_ms, closed_at, dry_run
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	flags := make([]string, 0, len(t.EntryFlags))
	for _, f := range t.EntryFlags {
		flags = append(flags, string(f))
	}

	err := s.conn.Exec(ctx, query,
		t.TradeID, t.PositionID, t.TokenAddress, t.Symbol,
		t.EntryPriceUSD, t.EntrySizeSOL, int32(t.EntryScore), flags,
		t.EntryBuyRatio, t.EntryLiquidityUSD,
		t.ExitPriceUSD, t.ExitSizeSOL, t.ExitReason,
		t.PnLSOL, t.PnLPct, t.HoldDurationMs, t.ClosedAt, t.DryRun,
	)
	if err != nil {
		return fmt.Errorf("insert trade archive row: %w", err)
	}
	return nil
}

// Summary computes aggregate performance over the archive.
func (s *TradeArchiveStore) Summary(ctx context.Context) (*domain.TradeSummary, error) {
	query := `
		SELECT
			count() AS total_trades,
			countIf(pnl_sol >= 0) AS wins,
			countIf(pnl_sol < 0) AS losses,
			sum(pnl_sol) AS total_pnl_sol,
			avg(pnl_pct) AS avg_pnl_pct,
			max(pnl_pct) AS best_pnl_pct,
			min(pnl_pct) AS worst_pnl_pct
		FROM trade_archive
	`

	var (
		total, wins, losses uint64
		totalPnL, avgPct    float64
		bestPct, worstPct   float64
	)

	row := s.conn.QueryRow(ctx, query)
	if err := row.Scan(&total, &wins, &losses, &totalPnL, &avgPct, &bestPct, &worstPct); err != nil {
		return nil, fmt.Errorf("scan trade archive summary: %w", err)
	}

	summary := &domain.TradeSummary{
		TotalTrades: int(total),
		Wins:        int(wins),
		Losses:      int(losses),
		TotalPnLSOL: totalPnL,
	}
	if total > 0 {
		summary.WinRatePct = float64(wins) / float64(total) * 100
		summary.AvgPnLPct = avgPct
		summary.BestPnLPct = bestPct
		summary.WorstPnLPct = worstPct
	}
	return summary, nil
}

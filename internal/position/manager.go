package position

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/idhash"
	"solana-trader/internal/storage"
)

// Lifecycle errors.
var (
	// ErrDuplicateOpen means the token already has an OPEN position.
	ErrDuplicateOpen = errors.New("token already has an open position")
	// ErrNoOpenPosition means the position is missing or already CLOSED.
	ErrNoOpenPosition = errors.New("no open position")
	// ErrInvalidExitLimits means a set-limits request failed validation.
	ErrInvalidExitLimits = errors.New("invalid stop-loss/take-profit limits")
)

// Options configures a Manager.
type Options struct {
	Positions storage.PositionStore
	Trades    storage.TradeRecordStore

	// Archive is the best-effort analytics sink. Optional; archive failures
	// are logged, never propagated.
	Archive storage.TradeArchiveStore

	Logger *log.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager owns the position lifecycle: NONE → OPEN → CLOSED. All mutations
// run under its lock, which keeps the one-open-position-per-token invariant
// and makes exposure reads consistent with concurrent opens.
type Manager struct {
	mu        sync.Mutex
	positions storage.PositionStore
	trades    storage.TradeRecordStore
	archive   storage.TradeArchiveStore
	logger    *log.Logger
	now       func() time.Time
}

// NewManager creates a position manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		positions: opts.Positions,
		trades:    opts.Trades,
		archive:   opts.Archive,
		logger:    logger,
		now:       now,
	}
}

// OpenRequest carries everything needed to open a position. The score fields
// are snapshotted onto the position and never change afterwards.
type OpenRequest struct {
	Score        *domain.Score
	SizeSOL      float64
	AmountTokens float64
	PriceUSD     float64 // executed entry price
	DryRun       bool
}

// Open transitions NONE → OPEN. Returns ErrDuplicateOpen if the token
// already has an open position. SL/TP prices are computed from the
// configured percentage distances around the executed entry price.
func (m *Manager) Open(ctx context.Context, req OpenRequest, limits domain.Limits) (*domain.Position, error) {
	if req.Score == nil || req.PriceUSD <= 0 || req.SizeSOL <= 0 {
		return nil, fmt.Errorf("open position: %w", storage.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	token := req.Score.TokenAddress
	if _, err := m.positions.GetOpenByToken(ctx, token); err == nil {
		return nil, fmt.Errorf("open %s: %w", token, ErrDuplicateOpen)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check open position for %s: %w", token, err)
	}

	openedAt := m.now().UnixMilli()
	pos := &domain.Position{
		PositionID:         idhash.ComputePositionID(token, openedAt),
		TokenAddress:       token,
		Symbol:             symbolOf(req.Score),
		EntryPriceUSD:      req.PriceUSD,
		AmountTokens:       req.AmountTokens,
		EntrySizeSOL:       req.SizeSOL,
		EntryScore:         req.Score.Value,
		EntryFlags:         append([]domain.ScoreFlag(nil), req.Score.Flags...),
		EntryBuyRatio:      req.Score.BuyRatio,
		EntryLiquidityUSD:  liquidityOf(req.Score),
		StopLossPriceUSD:   req.PriceUSD * (1 - limits.StopLossPct/100),
		TakeProfitPriceUSD: req.PriceUSD * (1 + limits.TakeProfitPct/100),
		OpenedAt:           openedAt,
		State:              domain.PositionStateOpen,
		DryRun:             req.DryRun,
	}

	if err := m.positions.Insert(ctx, pos); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("open %s: %w", token, ErrDuplicateOpen)
		}
		return nil, fmt.Errorf("insert position: %w", err)
	}

	m.logger.Printf("opened %s %s: %.4f SOL @ $%.8f (SL $%.8f, TP $%.8f)",
		pos.Symbol, pos.PositionID[:8], pos.EntrySizeSOL, pos.EntryPriceUSD,
		pos.StopLossPriceUSD, pos.TakeProfitPriceUSD)
	return pos, nil
}

// Close transitions OPEN → CLOSED and appends the immutable trade record.
// Returns ErrNoOpenPosition if the position is missing or already closed.
// The archive write is best-effort; the trade record store is the source of
// truth.
func (m *Manager) Close(ctx context.Context, positionID string, exitPriceUSD float64, exitReason string) (*domain.TradeRecord, error) {
	if exitPriceUSD <= 0 {
		return nil, fmt.Errorf("close position: %w", storage.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, err := m.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("close %s: %w", positionID, ErrNoOpenPosition)
		}
		return nil, fmt.Errorf("load position %s: %w", positionID, err)
	}
	if !pos.Open() {
		return nil, fmt.Errorf("close %s: %w", positionID, ErrNoOpenPosition)
	}

	closedAt := m.now().UnixMilli()
	pnlPct := pos.UnrealizedPnLPct(exitPriceUSD)
	exitSizeSOL := pos.EntrySizeSOL * (1 + pnlPct/100)

	pos.State = domain.PositionStateClosed
	pos.ClosedAt = closedAt
	if err := m.positions.Update(ctx, pos); err != nil {
		return nil, fmt.Errorf("close position %s: %w", positionID, err)
	}

	trade := &domain.TradeRecord{
		TradeID:           idhash.ComputeTradeID(pos.PositionID, exitReason, closedAt),
		PositionID:        pos.PositionID,
		TokenAddress:      pos.TokenAddress,
		Symbol:            pos.Symbol,
		EntryPriceUSD:     pos.EntryPriceUSD,
		EntrySizeSOL:      pos.EntrySizeSOL,
		EntryScore:        pos.EntryScore,
		EntryFlags:        append([]domain.ScoreFlag(nil), pos.EntryFlags...),
		EntryBuyRatio:     pos.EntryBuyRatio,
		EntryLiquidityUSD: pos.EntryLiquidityUSD,
		ExitPriceUSD:      exitPriceUSD,
		ExitSizeSOL:       exitSizeSOL,
		ExitReason:        exitReason,
		PnLSOL:            exitSizeSOL - pos.EntrySizeSOL,
		PnLPct:            pnlPct,
		HoldDurationMs:    closedAt - pos.OpenedAt,
		ClosedAt:          closedAt,
		DryRun:            pos.DryRun,
	}

	if err := m.trades.Insert(ctx, trade); err != nil {
		return nil, fmt.Errorf("record trade %s: %w", trade.TradeID, err)
	}

	if m.archive != nil {
		if err := m.archive.Insert(ctx, trade); err != nil {
			m.logger.Printf("archive write failed for %s: %v", trade.TradeID, err)
		}
	}

	m.logger.Printf("closed %s %s: %s, pnl %+.2f%% (%+.4f SOL)",
		trade.Symbol, positionID[:8], exitReason, trade.PnLPct, trade.PnLSOL)
	return trade, nil
}

// EvaluateExit checks a live price against the position's thresholds.
// Stop-loss wins when the price somehow crosses both in one observation.
func EvaluateExit(pos *domain.Position, currentPriceUSD float64) (string, bool) {
	if !pos.Open() || currentPriceUSD <= 0 {
		return "", false
	}
	if currentPriceUSD <= pos.StopLossPriceUSD {
		return domain.ExitReasonStopLoss, true
	}
	if currentPriceUSD >= pos.TakeProfitPriceUSD {
		return domain.ExitReasonTakeProfit, true
	}
	return "", false
}

// SetExitLimits updates SL/TP on an OPEN position. Both are absolute prices;
// the stop must stay below the target.
func (m *Manager) SetExitLimits(ctx context.Context, positionID string, stopLossUSD, takeProfitUSD float64) (*domain.Position, error) {
	if stopLossUSD <= 0 || takeProfitUSD <= 0 || stopLossUSD >= takeProfitUSD {
		return nil, fmt.Errorf("set limits on %s: %w", positionID, ErrInvalidExitLimits)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, err := m.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("set limits on %s: %w", positionID, ErrNoOpenPosition)
		}
		return nil, fmt.Errorf("load position %s: %w", positionID, err)
	}
	if !pos.Open() {
		return nil, fmt.Errorf("set limits on %s: %w", positionID, ErrNoOpenPosition)
	}

	pos.StopLossPriceUSD = stopLossUSD
	pos.TakeProfitPriceUSD = takeProfitUSD
	if err := m.positions.Update(ctx, pos); err != nil {
		return nil, fmt.Errorf("update position %s: %w", positionID, err)
	}

	m.logger.Printf("limits updated on %s: SL $%.8f, TP $%.8f", positionID[:8], stopLossUSD, takeProfitUSD)
	return pos, nil
}

// OpenPositions returns all OPEN positions, oldest first.
func (m *Manager) OpenPositions(ctx context.Context) ([]*domain.Position, error) {
	return m.positions.GetOpen(ctx)
}

// Exposure sums the entry sizes of all OPEN positions, taken under the
// mutation lock so a concurrent open can't slip past the portfolio cap.
func (m *Manager) Exposure(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exposureLocked(ctx)
}

func (m *Manager) exposureLocked(ctx context.Context) (float64, error) {
	open, err := m.positions.GetOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open positions: %w", err)
	}
	total := 0.0
	for _, p := range open {
		total += p.EntrySizeSOL
	}
	return total, nil
}

// TokenState describes a token's trading state for the risk gate.
type TokenState struct {
	HasOpenPosition bool
	LastCloseAt     int64 // ms; 0 = never closed
}

// TokenState reports whether the token has an open position and when it last
// closed one, derived from the durable trade history.
func (m *Manager) TokenState(ctx context.Context, tokenAddress string) (TokenState, error) {
	var state TokenState

	_, err := m.positions.GetOpenByToken(ctx, tokenAddress)
	switch {
	case err == nil:
		state.HasOpenPosition = true
	case errors.Is(err, storage.ErrNotFound):
	default:
		return state, fmt.Errorf("check open position for %s: %w", tokenAddress, err)
	}

	trades, err := m.trades.GetByToken(ctx, tokenAddress)
	if err != nil {
		return state, fmt.Errorf("load trade history for %s: %w", tokenAddress, err)
	}
	if len(trades) > 0 {
		state.LastCloseAt = trades[len(trades)-1].ClosedAt
	}
	return state, nil
}

func symbolOf(score *domain.Score) string {
	if score.Snapshot != nil {
		return score.Snapshot.Symbol
	}
	return ""
}

func liquidityOf(score *domain.Score) float64 {
	if score.Snapshot != nil {
		return score.Snapshot.LiquidityUSD
	}
	return 0
}

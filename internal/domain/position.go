package domain

// PositionState is the lifecycle state of a position.
// Transitions: (none) → OPEN → CLOSED. CLOSED is terminal.
type PositionState string

const (
	PositionStateOpen   PositionState = "OPEN"
	PositionStateClosed PositionState = "CLOSED"
)

// Position is one trade in flight. At most one OPEN position exists per
// token; entry fields are snapshotted at buy time and never change. Only the
// position manager mutates a Position (SL/TP edits, state transition).
type Position struct {
	PositionID   string // deterministic hash
	TokenAddress string
	Symbol       string

	// Entry snapshot
	EntryPriceUSD     float64
	AmountTokens      float64
	EntrySizeSOL      float64
	EntryScore        int
	EntryFlags        []ScoreFlag
	EntryBuyRatio     float64
	EntryLiquidityUSD float64

	// Exit thresholds, absolute prices. Mutable via set_limits while OPEN.
	StopLossPriceUSD   float64
	TakeProfitPriceUSD float64

	OpenedAt int64 // Unix timestamp in milliseconds
	ClosedAt int64 // 0 while OPEN
	State    PositionState
	DryRun   bool
}

// Open reports whether the position is currently OPEN.
func (p *Position) Open() bool {
	return p.State == PositionStateOpen
}

// UnrealizedPnLPct returns the percentage move from entry at currentPrice.
func (p *Position) UnrealizedPnLPct(currentPrice float64) float64 {
	if p.EntryPriceUSD == 0 {
		return 0
	}
	return (currentPrice - p.EntryPriceUSD) / p.EntryPriceUSD * 100
}

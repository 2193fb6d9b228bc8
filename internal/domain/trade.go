package domain

// TradeRecord is the immutable record of a closed position: the entry
// snapshot, the exit, and the realized outcome. Append-only; consumed by the
// learner and the stats aggregator.
type TradeRecord struct {
	TradeID      string // deterministic hash
	PositionID   string // the closed position this record archives
	TokenAddress string
	Symbol       string

	// Entry
	EntryPriceUSD     float64
	EntrySizeSOL      float64
	EntryScore        int
	EntryFlags        []ScoreFlag
	EntryBuyRatio     float64
	EntryLiquidityUSD float64

	// Exit
	ExitPriceUSD float64
	ExitSizeSOL  float64 // SOL received on close
	ExitReason   string  // STOP_LOSS | TAKE_PROFIT | MANUAL

	// Outcome
	PnLSOL float64
	PnLPct float64 // price move entry → exit, percent

	HoldDurationMs int64
	ClosedAt       int64 // Unix timestamp in milliseconds
	DryRun         bool
}

// Exit reason codes. Every TradeRecord carries exactly one.
const (
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonManual     = "MANUAL"
)

// Win reports whether the trade realized a non-negative SOL outcome.
func (t *TradeRecord) Win() bool {
	return t.PnLSOL >= 0
}

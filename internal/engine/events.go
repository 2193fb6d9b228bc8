package engine

import (
	"solana-trader/internal/domain"
	"solana-trader/internal/market"
	"solana-trader/internal/risk"
)

// CandidateAction is what the scan cycle did with one scored candidate.
type CandidateAction string

const (
	// ActionBought means the candidate passed the gate and a buy executed.
	ActionBought CandidateAction = "BOUGHT"
	// ActionBlocked means the risk gate denied the buy.
	ActionBlocked CandidateAction = "BLOCKED"
	// ActionSkipped means the candidate never reached the gate: score or
	// buy ratio below the entry thresholds, or the auto-buy cap was hit.
	ActionSkipped CandidateAction = "SKIPPED"
	// ActionFailed means a quote or execution call failed. The cycle
	// continues with the next candidate.
	ActionFailed CandidateAction = "FAILED"
)

// CandidateReport is the per-candidate scan event.
type CandidateReport struct {
	Score  *domain.Score
	Action CandidateAction

	// Blocked details.
	DenyReason risk.DenyReason
	Checklist  []risk.CheckResult

	// Bought details.
	Position *domain.Position
	SizeSOL  float64
	Quote    *market.Quote

	// Skipped/failed details.
	Note string
	Err  error
}

// ScanReport is one scan cycle's outcome, candidates sorted by score
// descending.
type ScanReport struct {
	StartedAt  int64 // ms
	Candidates []*CandidateReport
	Bought     int
	DryRun     bool
}

// ExitResult is one open position's exit evaluation.
type ExitResult struct {
	Position *domain.Position

	// CurrentPriceUSD is the price the evaluation used; 0 when no price
	// data was available and the position was left untouched.
	CurrentPriceUSD float64
	PnLPct          float64

	// Closed details. Trade is nil while the position stays open.
	Trade   *domain.TradeRecord
	Lessons []*domain.MemoryEntry

	Err error
}

// ExitReport is one exit cycle's outcome.
type ExitReport struct {
	StartedAt int64 // ms
	Results   []*ExitResult
	Closed    int
	DryRun    bool
}

// StatusReport is the read-only engine snapshot for the status job.
type StatusReport struct {
	Summary       *domain.TradeSummary
	OpenPositions []*domain.Position
	ExposureSOL   float64
	DryRun        bool

	// ArchiveSummary is the analytics-store aggregate; nil when no archive
	// is configured or the read failed.
	ArchiveSummary *domain.TradeSummary
}

// PositionView is one open position with live market context.
type PositionView struct {
	Position        *domain.Position
	CurrentPriceUSD float64 // 0 when no price data
	PnLPct          float64
}

// PositionsReport backs the positions command.
type PositionsReport struct {
	Open           []*PositionView
	InvestedSOL    float64
	MaxExposureSOL float64
	Summary        *domain.TradeSummary

	// RecentTrades is shown when nothing is open.
	RecentTrades []*domain.TradeRecord
	DryRun       bool
}

// PortfolioReport backs the portfolio command. Display only; positions stay
// the engine's source of truth.
type PortfolioReport struct {
	WalletPubkey string
	BalanceSOL   float64
	Holdings     []market.Holding
}

// MemoryReport backs the memory command.
type MemoryReport struct {
	Lessons  []*domain.MemoryEntry
	Patterns []*domain.MemoryEntry
	Avoids   []*domain.MemoryEntry
	Recent   *domain.TradeSummary
}

package domain

import "time"

// Limits is the process-wide risk configuration. Loaded once at startup and
// read-only afterwards; the risk gate receives it by value so no caller can
// relax a check mid-flight.
type Limits struct {
	// Position sizing
	MaxPositionSOL  float64 // max size of a single position, in SOL
	MaxPortfolioSOL float64 // max total exposure across open positions, in SOL

	// Entry thresholds
	MinTrendScore   int     // minimum composite score (inclusive)
	MinBuyRatio     float64 // minimum buy ratio, fraction (inclusive)
	MinLiquidityUSD float64 // below this the LOW_LIQ flag is raised
	MinVolume24hUSD float64 // below this the LOW_VOL flag is raised

	// Execution
	MaxPriceImpactPct float64 // max quote price impact, percent
	MaxSlippageBps    int     // slippage ceiling for quotes/swaps

	// Lifecycle
	Cooldown      time.Duration // min time between trades on the same token
	StopLossPct   float64       // default stop-loss distance, percent below entry
	TakeProfitPct float64       // default take-profit distance, percent above entry

	// Scan behavior
	MaxAutoBuysPerScan int // cap on automatic buys in a single scan cycle
}

// DefaultLimits returns conservative defaults for meme-token trading.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSOL:     0.1,
		MaxPortfolioSOL:    0.5,
		MinTrendScore:      65,
		MinBuyRatio:        0.60,
		MinLiquidityUSD:    50_000,
		MinVolume24hUSD:    100_000,
		MaxPriceImpactPct:  5.0,
		MaxSlippageBps:     300,
		Cooldown:           30 * time.Minute,
		StopLossPct:        20,
		TakeProfitPct:      50,
		MaxAutoBuysPerScan: 3,
	}
}

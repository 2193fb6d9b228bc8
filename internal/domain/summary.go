package domain

// TradeSummary aggregates realized performance over a set of trade records.
// Recomputed on demand; never cached across decisions.
type TradeSummary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRatePct  float64

	TotalPnLSOL float64
	AvgPnLPct   float64
	BestPnLPct  float64
	WorstPnLPct float64
}

// Package stats computes realized-performance aggregates from trade records.
// Pure functions; every caller recomputes from the durable history, so the
// numbers are idempotent and survive restarts.
package stats

import (
	"math"

	"solana-trader/internal/domain"
)

// Summarize aggregates a set of trade records. An empty set yields the zero
// summary.
func Summarize(trades []*domain.TradeRecord) *domain.TradeSummary {
	summary := &domain.TradeSummary{}
	if len(trades) == 0 {
		return summary
	}

	sumPct := 0.0
	best := math.Inf(-1)
	worst := math.Inf(1)

	for _, t := range trades {
		summary.TotalTrades++
		if t.Win() {
			summary.Wins++
		} else {
			summary.Losses++
		}
		summary.TotalPnLSOL += t.PnLSOL
		sumPct += t.PnLPct
		if t.PnLPct > best {
			best = t.PnLPct
		}
		if t.PnLPct < worst {
			worst = t.PnLPct
		}
	}

	summary.WinRatePct = float64(summary.Wins) / float64(summary.TotalTrades) * 100
	summary.AvgPnLPct = sumPct / float64(summary.TotalTrades)
	summary.BestPnLPct = best
	summary.WorstPnLPct = worst
	return summary
}

// minTradesForSizing is the sample below which win rate is noise and the
// base size is used as-is.
const minTradesForSizing = 5

// SuggestTradeSize scales the next buy by recent win rate: proven performance
// bets bigger, a losing streak bets smaller. Hard caps: 2x base and 10% of
// the SOL balance; floor 0.01 SOL.
func SuggestTradeSize(summary *domain.TradeSummary, baseSOL, solBalance float64) float64 {
	if summary == nil || summary.TotalTrades < minTradesForSizing {
		return baseSOL
	}

	multiplier := 1.0
	switch {
	case summary.WinRatePct >= 70:
		multiplier = 1.5
	case summary.WinRatePct >= 55:
		multiplier = 1.2
	case summary.WinRatePct < 40:
		multiplier = 0.5
	}

	suggested := baseSOL * multiplier
	if max := baseSOL * 2; suggested > max {
		suggested = max
	}
	if max := solBalance * 0.1; suggested > max {
		suggested = max
	}
	if suggested < 0.01 {
		suggested = 0.01
	}
	return math.Round(suggested*10_000) / 10_000
}

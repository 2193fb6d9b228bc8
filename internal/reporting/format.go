// Package reporting renders engine reports as human-readable text for the
// notification channel and the status command.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/engine"
	"solana-trader/internal/market"
)

// topCandidates bounds the scan report to the best-scored entries.
const topCandidates = 5

// FormatScan renders one scan cycle.
func FormatScan(r *engine.ScanReport) string {
	var sb strings.Builder

	sb.WriteString(dryRunTag(r.DryRun))
	sb.WriteString(fmt.Sprintf("Scan %s: %d candidates, %d bought\n",
		Timestamp(r.StartedAt), len(r.Candidates), r.Bought))

	shown := r.Candidates
	if len(shown) > topCandidates {
		shown = shown[:topCandidates]
	}
	for _, cand := range shown {
		sb.WriteString(formatCandidate(cand))
	}
	return sb.String()
}

func formatCandidate(c *engine.CandidateReport) string {
	symbol := "?"
	score := 0
	if c.Score != nil {
		score = c.Score.Value
		if c.Score.Snapshot != nil && c.Score.Snapshot.Symbol != "" {
			symbol = c.Score.Snapshot.Symbol
		} else if c.Score.TokenAddress != "" {
			symbol = shortAddr(c.Score.TokenAddress)
		}
	}

	switch c.Action {
	case engine.ActionBought:
		return fmt.Sprintf("  BOUGHT %s score=%d size=%.4f SOL entry=$%s sl=$%s tp=$%s\n",
			symbol, score, c.SizeSOL,
			price(c.Position.EntryPriceUSD),
			price(c.Position.StopLossPriceUSD),
			price(c.Position.TakeProfitPriceUSD))
	case engine.ActionBlocked:
		var failed []string
		for _, check := range c.Checklist {
			if !check.Pass {
				failed = append(failed, fmt.Sprintf("%s (%s, actual %s)", check.Name, check.Threshold, check.Actual))
			}
		}
		return fmt.Sprintf("  BLOCKED %s score=%d reason=%s: %s\n",
			symbol, score, c.DenyReason, strings.Join(failed, "; "))
	case engine.ActionFailed:
		return fmt.Sprintf("  FAILED %s score=%d: %v\n", symbol, score, c.Err)
	default:
		note := c.Note
		if note == "" {
			note = "skipped"
		}
		return fmt.Sprintf("  SKIPPED %s score=%d (%s)\n", symbol, score, note)
	}
}

// FormatExits renders one exit cycle.
func FormatExits(r *engine.ExitReport) string {
	var sb strings.Builder

	sb.WriteString(dryRunTag(r.DryRun))
	if len(r.Results) == 0 {
		sb.WriteString("Exit check: no open positions\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Exit check: %d open, %d closed\n", len(r.Results), r.Closed))

	for _, result := range r.Results {
		symbol := result.Position.Symbol
		if symbol == "" {
			symbol = shortAddr(result.Position.TokenAddress)
		}
		switch {
		case result.Trade != nil:
			t := result.Trade
			sb.WriteString(fmt.Sprintf("  CLOSED %s %s at $%s: %+.1f%% (%+.4f SOL)\n",
				symbol, t.ExitReason, price(t.ExitPriceUSD), t.PnLPct, t.PnLSOL))
			for _, lesson := range result.Lessons {
				if lesson.Kind == domain.MemoryKindAvoid {
					sb.WriteString(fmt.Sprintf("    avoid-listed: %s\n", lesson.Reason))
				}
			}
		case result.CurrentPriceUSD > 0:
			sb.WriteString(fmt.Sprintf("  HOLD %s at $%s: %+.1f%%\n",
				symbol, price(result.CurrentPriceUSD), result.PnLPct))
		default:
			sb.WriteString(fmt.Sprintf("  HOLD %s: no price data\n", symbol))
		}
		if result.Err != nil {
			sb.WriteString(fmt.Sprintf("    warning: %v\n", result.Err))
		}
	}
	return sb.String()
}

// FormatStatus renders the status report.
func FormatStatus(r *engine.StatusReport) string {
	var sb strings.Builder

	sb.WriteString(dryRunTag(r.DryRun))
	sb.WriteString("Status\n")
	sb.WriteString(formatSummary(r.Summary))
	sb.WriteString(fmt.Sprintf("  open positions: %d, exposure %.4f SOL\n",
		len(r.OpenPositions), r.ExposureSOL))

	if r.ArchiveSummary != nil {
		sb.WriteString(fmt.Sprintf("  archive: %d trades, win rate %.1f%%, total %+.4f SOL\n",
			r.ArchiveSummary.TotalTrades, r.ArchiveSummary.WinRatePct, r.ArchiveSummary.TotalPnLSOL))
	}
	return sb.String()
}

// FormatPositions renders the positions view: open positions with live PnL,
// the invested/max exposure line, and the stats footer. With nothing open it
// shows recent trade history instead.
func FormatPositions(r *engine.PositionsReport) string {
	var sb strings.Builder

	sb.WriteString(dryRunTag(r.DryRun))
	if len(r.Open) == 0 {
		sb.WriteString("No open positions\n")
		if len(r.RecentTrades) > 0 {
			sb.WriteString("Recent trades:\n")
			for _, t := range r.RecentTrades {
				sb.WriteString(fmt.Sprintf("  %s %s %+.1f%% (%+.4f SOL)\n",
					t.Symbol, t.ExitReason, t.PnLPct, t.PnLSOL))
			}
		}
		sb.WriteString(formatSummary(r.Summary))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Open positions (%d):\n", len(r.Open)))
	for _, view := range r.Open {
		pos := view.Position
		symbol := pos.Symbol
		if symbol == "" {
			symbol = shortAddr(pos.TokenAddress)
		}
		if view.CurrentPriceUSD > 0 {
			sb.WriteString(fmt.Sprintf("  %s entry=$%s now=$%s %+.1f%% size=%.4f SOL sl=$%s tp=$%s\n",
				symbol, price(pos.EntryPriceUSD), price(view.CurrentPriceUSD), view.PnLPct,
				pos.EntrySizeSOL, price(pos.StopLossPriceUSD), price(pos.TakeProfitPriceUSD)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s entry=$%s (no live price) size=%.4f SOL sl=$%s tp=$%s\n",
				symbol, price(pos.EntryPriceUSD),
				pos.EntrySizeSOL, price(pos.StopLossPriceUSD), price(pos.TakeProfitPriceUSD)))
		}
	}
	sb.WriteString(fmt.Sprintf("Invested: %.4f / %.4f SOL max\n", r.InvestedSOL, r.MaxExposureSOL))
	sb.WriteString(formatSummary(r.Summary))
	return sb.String()
}

// FormatPortfolio renders wallet balance and holdings.
func FormatPortfolio(r *engine.PortfolioReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Wallet %s\n", shortAddr(r.WalletPubkey)))
	sb.WriteString(fmt.Sprintf("  SOL balance: %.4f\n", r.BalanceSOL))
	if len(r.Holdings) == 0 {
		sb.WriteString("  no token holdings\n")
		return sb.String()
	}
	for _, h := range r.Holdings {
		symbol := h.Symbol
		if symbol == "" {
			symbol = shortAddr(h.Mint)
		}
		sb.WriteString(fmt.Sprintf("  %s: %.4f ($%.2f)\n", symbol, h.Amount, h.ValueUSD))
	}
	return sb.String()
}

// FormatMemory renders the memory context: lessons, winning patterns, avoid
// list, and recent performance.
func FormatMemory(r *engine.MemoryReport) string {
	var sb strings.Builder

	sb.WriteString("Memory\n")

	sb.WriteString(fmt.Sprintf("Lessons (%d):\n", len(r.Lessons)))
	for _, e := range r.Lessons {
		scope := ""
		if e.TokenAddress != "" {
			scope = fmt.Sprintf(" [%s]", shortAddr(e.TokenAddress))
		}
		sb.WriteString(fmt.Sprintf("  - %s%s\n", e.Lesson, scope))
	}

	sb.WriteString(fmt.Sprintf("Winning patterns (%d):\n", len(r.Patterns)))
	for _, e := range r.Patterns {
		sb.WriteString(fmt.Sprintf("  - %s\n", e.Pattern))
	}

	sb.WriteString(fmt.Sprintf("Avoid list (%d):\n", len(r.Avoids)))
	for _, e := range r.Avoids {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", shortAddr(e.TokenAddress), e.Reason))
	}

	if r.Recent != nil && r.Recent.TotalTrades > 0 {
		sb.WriteString("Recent performance:\n")
		sb.WriteString(formatSummary(r.Recent))
	}
	return sb.String()
}

// FormatQuote renders a swap quote.
func FormatQuote(q *market.Quote) string {
	return fmt.Sprintf("Quote %s -> %s: in=%d out=%d impact=%.2f%% routes=%d slippage=%dbps\n",
		shortAddr(q.InputMint), shortAddr(q.OutputMint),
		q.InAmount, q.OutAmount, q.PriceImpactPct, q.RouteCount, q.SlippageBps)
}

func formatSummary(s *domain.TradeSummary) string {
	if s == nil || s.TotalTrades == 0 {
		return "  no closed trades yet\n"
	}
	return fmt.Sprintf("  trades: %d (%dW/%dL), win rate %.1f%%, total %+.4f SOL, avg %+.1f%%, best %+.1f%%, worst %+.1f%%\n",
		s.TotalTrades, s.Wins, s.Losses, s.WinRatePct,
		s.TotalPnLSOL, s.AvgPnLPct, s.BestPnLPct, s.WorstPnLPct)
}

func dryRunTag(dryRun bool) string {
	if dryRun {
		return "[DRY RUN] "
	}
	return ""
}

// price formats a USD price with enough precision for sub-cent tokens.
func price(v float64) string {
	if v != 0 && v < 0.01 {
		return fmt.Sprintf("%.8f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}

// Timestamp renders a millisecond timestamp for report lines.
func Timestamp(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

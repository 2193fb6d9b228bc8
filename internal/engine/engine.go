// Package engine is the decision core: it runs the scan, exit and status
// cycles and backs the command surface. All mutating operations serialize on
// the engine's lock; collaborators are interfaces so the cycles never know
// which network they talk to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/learning"
	"solana-trader/internal/market"
	"solana-trader/internal/position"
	"solana-trader/internal/risk"
	"solana-trader/internal/scoring"
	"solana-trader/internal/stats"
	"solana-trader/internal/storage"
)

// recentTradesForSizing bounds the history window the size suggestion reads.
const recentTradesForSizing = 50

// ErrNoOpenPositionForToken means a token-addressed command found nothing
// to act on.
var ErrNoOpenPositionForToken = errors.New("no open position for token")

// Options configures an Engine.
type Options struct {
	Trends   market.TrendSource
	Prices   market.PriceSource
	Quoter   market.Quoter
	Executor market.Executor

	// Holdings is optional; without it the portfolio command is
	// unavailable and trade sizing skips the balance cap.
	Holdings market.HoldingsProvider

	Manager *position.Manager
	Learner *learning.Learner

	Memory storage.MemoryEntryStore
	Trades storage.TradeRecordStore

	// Archive is optional; when set the status report includes the
	// analytics-store aggregate.
	Archive storage.TradeArchiveStore

	Limits       domain.Limits
	WalletPubkey string
	BaseSizeSOL  float64
	DryRun       bool

	Logger *log.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine runs the trading cycles.
type Engine struct {
	mu sync.Mutex

	trends   market.TrendSource
	prices   market.PriceSource
	quoter   market.Quoter
	executor market.Executor
	holdings market.HoldingsProvider

	manager *position.Manager
	learner *learning.Learner

	memory  storage.MemoryEntryStore
	trades  storage.TradeRecordStore
	archive storage.TradeArchiveStore

	scorer *scoring.Scorer
	gate   *risk.Gate

	limits      domain.Limits
	wallet      string
	baseSizeSOL float64
	dryRun      bool

	logger *log.Logger
	now    func() time.Time
}

// New creates an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		trends:      opts.Trends,
		prices:      opts.Prices,
		quoter:      opts.Quoter,
		executor:    opts.Executor,
		holdings:    opts.Holdings,
		manager:     opts.Manager,
		learner:     opts.Learner,
		memory:      opts.Memory,
		trades:      opts.Trades,
		archive:     opts.Archive,
		scorer:      scoring.NewScorer(opts.Limits),
		gate:        risk.NewGate(),
		limits:      opts.Limits,
		wallet:      opts.WalletPubkey,
		baseSizeSOL: opts.BaseSizeSOL,
		dryRun:      opts.DryRun,
		logger:      logger,
		now:         now,
	}
}

// Scan runs one scan cycle: fetch trending tokens, score each against the
// current memory view, and attempt gate-authorized buys on the top-scored
// eligible candidates. At most Limits.MaxAutoBuysPerScan buys execute per
// cycle; every candidate gets exactly one report entry. A single candidate's
// failure never aborts the cycle.
func (e *Engine) Scan(ctx context.Context) (*ScanReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &ScanReport{StartedAt: e.now().UnixMilli(), DryRun: e.dryRun}

	view := e.memoryView(ctx)

	snapshots, err := e.trends.Trending(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	if len(snapshots) == 0 {
		return report, nil
	}

	var candidates []*CandidateReport
	for _, snap := range snapshots {
		score, err := e.scorer.Score(snap, view)
		if err != nil {
			e.logger.Printf("WARN: skipping %s: %v", snap.TokenAddress, err)
			candidates = append(candidates, &CandidateReport{
				Action: ActionSkipped,
				Note:   "invalid snapshot",
				Err:    err,
				Score:  &domain.Score{TokenAddress: snap.TokenAddress, Snapshot: snap},
			})
			continue
		}
		candidates = append(candidates, &CandidateReport{Score: score})
	}

	// Best first; avoided tokens sort below every numeric score.
	sort.SliceStable(candidates, func(i, j int) bool {
		return effectiveScore(candidates[i]) > effectiveScore(candidates[j])
	})

	size := e.suggestSize(ctx)

	for _, cand := range candidates {
		if cand.Action != "" { // already settled (invalid snapshot)
			continue
		}
		score := cand.Score

		if !score.Avoided() &&
			(score.Value < e.limits.MinTrendScore || score.BuyRatio < e.limits.MinBuyRatio) {
			cand.Action = ActionSkipped
			cand.Note = "below entry thresholds"
			continue
		}
		if report.Bought >= e.limits.MaxAutoBuysPerScan {
			cand.Action = ActionSkipped
			cand.Note = "auto-buy cap reached"
			continue
		}

		e.attemptBuy(ctx, cand, size)
		if cand.Action == ActionBought {
			report.Bought++
		}
	}

	report.Candidates = candidates
	return report, nil
}

// attemptBuy quotes, gates, executes and opens one candidate, settling the
// report entry in place.
func (e *Engine) attemptBuy(ctx context.Context, cand *CandidateReport, sizeSOL float64) {
	score := cand.Score
	token := score.TokenAddress

	var (
		quote *market.Quote
		err   error
	)
	// An avoid-listed token never gets quoted; the gate records the denial.
	if !score.Avoided() {
		quote, err = e.quoter.Quote(ctx, market.QuoteRequest{
			InputMint:      market.WrappedSOLMint,
			OutputMint:     token,
			AmountLamports: market.SOLToLamports(sizeSOL),
			SlippageBps:    market.ClampSlippage(e.limits.MaxSlippageBps, e.limits.MaxSlippageBps),
		})
		if err != nil {
			e.logger.Printf("WARN: quote %s: %v", token, err)
			cand.Action = ActionFailed
			cand.Err = fmt.Errorf("quote: %w", err)
			return
		}
		cand.Quote = quote
	}

	state, err := e.manager.TokenState(ctx, token)
	if err != nil {
		cand.Action = ActionFailed
		cand.Err = fmt.Errorf("token state: %w", err)
		return
	}
	exposure, err := e.manager.Exposure(ctx)
	if err != nil {
		cand.Action = ActionFailed
		cand.Err = fmt.Errorf("exposure: %w", err)
		return
	}

	var impact float64
	if quote != nil {
		impact = quote.PriceImpactPct
	}
	verdict := e.gate.Evaluate(risk.Input{
		Score:           score,
		SizeSOL:         sizeSOL,
		PriceImpactPct:  impact,
		OpenExposureSOL: exposure,
		HasOpenPosition: state.HasOpenPosition,
		LastCloseAt:     state.LastCloseAt,
		Now:             e.now().UnixMilli(),
	}, e.limits)
	cand.Checklist = verdict.Checklist
	if !verdict.Authorized {
		cand.Action = ActionBlocked
		cand.DenyReason = verdict.DenyReason
		return
	}

	swap, err := e.executor.ExecuteSwap(ctx, quote, e.wallet)
	if err != nil {
		e.logger.Printf("WARN: execute swap %s: %v", token, err)
		cand.Action = ActionFailed
		cand.Err = fmt.Errorf("execute swap: %w", err)
		return
	}

	pos, err := e.manager.Open(ctx, position.OpenRequest{
		Score:        score,
		SizeSOL:      sizeSOL,
		AmountTokens: float64(quote.OutAmount),
		PriceUSD:     score.Snapshot.PriceUSD,
		DryRun:       e.dryRun,
	}, e.limits)
	if err != nil {
		cand.Action = ActionFailed
		cand.Err = fmt.Errorf("open position: %w", err)
		return
	}

	e.logger.Printf("bought %s size=%.4f SOL score=%d sig=%s",
		token, sizeSOL, score.Value, swap.Signature)
	cand.Action = ActionBought
	cand.Position = pos
	cand.SizeSOL = sizeSOL
}

// CheckExits runs one exit cycle: evaluate SL/TP for every open position at
// current prices, close what triggered, and feed closed trades to the
// learner. prices may carry stream-sourced quotes; those override the price
// source, but any open token they do not cover is fetched from the source so
// no position skips its exit check.
func (e *Engine) CheckExits(ctx context.Context, prices map[string]float64) (*ExitReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &ExitReport{StartedAt: e.now().UnixMilli(), DryRun: e.dryRun}

	open, err := e.manager.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	if len(open) == 0 {
		return report, nil
	}

	merged := make(map[string]float64, len(open))
	var missing []string
	for _, pos := range open {
		if price, ok := prices[pos.TokenAddress]; ok && price > 0 {
			merged[pos.TokenAddress] = price
		} else {
			missing = append(missing, pos.TokenAddress)
		}
	}
	if len(missing) > 0 {
		fetched, err := e.prices.Prices(ctx, missing)
		if err != nil {
			if len(merged) == 0 {
				return nil, fmt.Errorf("fetch prices: %w", err)
			}
			e.logger.Printf("WARN: price fetch for %d tokens failed: %v", len(missing), err)
		}
		for token, price := range fetched {
			merged[token] = price
		}
	}
	prices = merged

	for _, pos := range open {
		result := &ExitResult{Position: pos}
		report.Results = append(report.Results, result)

		price, ok := prices[pos.TokenAddress]
		if !ok || price <= 0 {
			e.logger.Printf("WARN: no price for %s, exit check skipped", pos.TokenAddress)
			continue
		}
		result.CurrentPriceUSD = price
		result.PnLPct = pos.UnrealizedPnLPct(price)

		reason, hit := position.EvaluateExit(pos, price)
		if !hit {
			continue
		}

		trade, err := e.manager.Close(ctx, pos.PositionID, price, reason)
		if err != nil {
			e.logger.Printf("WARN: close %s: %v", pos.PositionID, err)
			result.Err = fmt.Errorf("close: %w", err)
			continue
		}
		result.Trade = trade
		report.Closed++

		lessons, err := e.learner.Learn(ctx, trade)
		if err != nil {
			// Memory failures degrade, never block the cycle.
			e.logger.Printf("WARN: learn from %s: %v", trade.TradeID, err)
			result.Err = fmt.Errorf("learn: %w", err)
			continue
		}
		result.Lessons = lessons
	}

	return report, nil
}

// Status aggregates realized performance and open exposure. Never mutates
// positions or memory; holds the engine lock so the trade log and the open
// set come from one consistent point in time.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	trades, err := e.trades.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	open, err := e.manager.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	exposure, err := e.manager.Exposure(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute exposure: %w", err)
	}

	report := &StatusReport{
		Summary:       stats.Summarize(trades),
		OpenPositions: open,
		ExposureSOL:   exposure,
		DryRun:        e.dryRun,
	}

	if e.archive != nil {
		summary, err := e.archive.Summary(ctx)
		if err != nil {
			e.logger.Printf("WARN: archive summary: %v", err)
		} else {
			report.ArchiveSummary = summary
		}
	}
	return report, nil
}

// Buy scores and buys a specific token on demand. The same risk gate that
// guards automatic buys applies; there is no manual override.
func (e *Engine) Buy(ctx context.Context, tokenAddress string, sizeSOL float64) (*CandidateReport, error) {
	if err := domain.ValidateTokenAddress(tokenAddress); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if sizeSOL <= 0 {
		sizeSOL = e.suggestSize(ctx)
	}

	snapshots, err := e.trends.Snapshots(ctx, []string{tokenAddress})
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, market.ErrNoMarketData
	}

	score, err := e.scorer.Score(snapshots[0], e.memoryView(ctx))
	if err != nil {
		return nil, err
	}

	cand := &CandidateReport{Score: score}
	e.attemptBuy(ctx, cand, sizeSOL)
	return cand, nil
}

// Sell closes a token's open position at the current market price with a
// MANUAL exit reason. The closed trade still feeds the learner.
func (e *Engine) Sell(ctx context.Context, tokenAddress string) (*ExitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.findOpen(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}

	prices, err := e.prices.Prices(ctx, []string{tokenAddress})
	if err != nil {
		return nil, fmt.Errorf("fetch price: %w", err)
	}
	price, ok := prices[tokenAddress]
	if !ok || price <= 0 {
		return nil, market.ErrNoMarketData
	}

	trade, err := e.manager.Close(ctx, pos.PositionID, price, domain.ExitReasonManual)
	if err != nil {
		return nil, err
	}

	result := &ExitResult{
		Position:        pos,
		CurrentPriceUSD: price,
		PnLPct:          trade.PnLPct,
		Trade:           trade,
	}
	lessons, err := e.learner.Learn(ctx, trade)
	if err != nil {
		e.logger.Printf("WARN: learn from %s: %v", trade.TradeID, err)
		result.Err = fmt.Errorf("learn: %w", err)
		return result, nil
	}
	result.Lessons = lessons
	return result, nil
}

// BuyQuote prices a SOL→token buy without executing it.
func (e *Engine) BuyQuote(ctx context.Context, tokenAddress string, sizeSOL float64) (*market.Quote, error) {
	if err := domain.ValidateTokenAddress(tokenAddress); err != nil {
		return nil, err
	}
	if sizeSOL <= 0 {
		sizeSOL = e.baseSizeSOL
	}
	return e.quoter.Quote(ctx, market.QuoteRequest{
		InputMint:      market.WrappedSOLMint,
		OutputMint:     tokenAddress,
		AmountLamports: market.SOLToLamports(sizeSOL),
		SlippageBps:    e.limits.MaxSlippageBps,
	})
}

// SellQuote prices closing the token's open position without executing it.
func (e *Engine) SellQuote(ctx context.Context, tokenAddress string) (*market.Quote, error) {
	e.mu.Lock()
	pos, err := e.findOpen(ctx, tokenAddress)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return e.quoter.Quote(ctx, market.QuoteRequest{
		InputMint:      tokenAddress,
		OutputMint:     market.WrappedSOLMint,
		AmountLamports: int64(pos.AmountTokens),
		SlippageBps:    e.limits.MaxSlippageBps,
	})
}

// SetLimits updates a token's open-position stop-loss/take-profit prices.
func (e *Engine) SetLimits(ctx context.Context, tokenAddress string, stopLossUSD, takeProfitUSD float64) (*domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.findOpen(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	return e.manager.SetExitLimits(ctx, pos.PositionID, stopLossUSD, takeProfitUSD)
}

// Positions builds the positions view: open positions with live PnL when
// prices resolve, plus invested/max exposure and the stats footer. With
// nothing open it falls back to recent trade history. Holds the engine lock
// like Status.
func (e *Engine) Positions(ctx context.Context) (*PositionsReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	open, err := e.manager.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}

	report := &PositionsReport{MaxExposureSOL: e.limits.MaxPortfolioSOL, DryRun: e.dryRun}

	trades, err := e.trades.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	report.Summary = stats.Summarize(trades)

	if len(open) == 0 {
		recent, err := e.trades.GetRecent(ctx, 5)
		if err != nil {
			return nil, fmt.Errorf("load recent trades: %w", err)
		}
		report.RecentTrades = recent
		return report, nil
	}

	tokens := make([]string, 0, len(open))
	for _, pos := range open {
		tokens = append(tokens, pos.TokenAddress)
		report.InvestedSOL += pos.EntrySizeSOL
	}

	// Live prices are best-effort; the view degrades to entry data.
	prices, err := e.prices.Prices(ctx, tokens)
	if err != nil {
		e.logger.Printf("WARN: live prices unavailable: %v", err)
		prices = nil
	}

	for _, pos := range open {
		view := &PositionView{Position: pos}
		if price, ok := prices[pos.TokenAddress]; ok && price > 0 {
			view.CurrentPriceUSD = price
			view.PnLPct = pos.UnrealizedPnLPct(price)
		}
		report.Open = append(report.Open, view)
	}
	return report, nil
}

// Portfolio reads wallet balance and holdings. Display only.
func (e *Engine) Portfolio(ctx context.Context) (*PortfolioReport, error) {
	if e.holdings == nil || e.wallet == "" {
		return nil, errors.New("no holdings provider configured")
	}

	balance, err := e.holdings.SOLBalance(ctx, e.wallet)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	holdings, err := e.holdings.Holdings(ctx, e.wallet)
	if err != nil {
		return nil, fmt.Errorf("fetch holdings: %w", err)
	}
	return &PortfolioReport{
		WalletPubkey: e.wallet,
		BalanceSOL:   balance,
		Holdings:     holdings,
	}, nil
}

// MemoryContext builds the memory view for reporting: recent lessons, all
// winning patterns, the avoid list, and recent realized performance.
func (e *Engine) MemoryContext(ctx context.Context) (*MemoryReport, error) {
	lessons, err := e.memory.GetByKind(ctx, domain.MemoryKindLesson, 10)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	patterns, err := e.memory.GetByKind(ctx, domain.MemoryKindPattern, 0)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	avoids, err := e.memory.GetByKind(ctx, domain.MemoryKindAvoid, 0)
	if err != nil {
		return nil, fmt.Errorf("load avoid list: %w", err)
	}

	recent, err := e.trades.GetRecent(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("load recent trades: %w", err)
	}
	return &MemoryReport{
		Lessons:  lessons,
		Patterns: patterns,
		Avoids:   avoids,
		Recent:   stats.Summarize(recent),
	}, nil
}

// LearnGuidance records a user-provided lesson, optionally scoped to a token.
func (e *Engine) LearnGuidance(ctx context.Context, note, tokenAddress string) (*domain.MemoryEntry, error) {
	return e.learner.AddGuidance(ctx, note, tokenAddress)
}

// memoryView loads a point-in-time memory snapshot. Memory read failures
// degrade to an empty view for the cycle.
func (e *Engine) memoryView(ctx context.Context) *scoring.MemoryView {
	view, err := scoring.BuildMemoryView(ctx, e.memory)
	if err != nil {
		e.logger.Printf("WARN: memory unavailable, scoring without avoid list or patterns: %v", err)
		return scoring.EmptyMemoryView()
	}
	return view
}

// suggestSize picks the next buy size from recent performance, capped by
// wallet balance when a holdings provider is configured.
func (e *Engine) suggestSize(ctx context.Context) float64 {
	trades, err := e.trades.GetRecent(ctx, recentTradesForSizing)
	if err != nil {
		e.logger.Printf("WARN: trade history unavailable, using base size: %v", err)
		return e.baseSizeSOL
	}
	summary := stats.Summarize(trades)

	if e.holdings != nil && e.wallet != "" {
		balance, err := e.holdings.SOLBalance(ctx, e.wallet)
		if err == nil {
			return stats.SuggestTradeSize(summary, e.baseSizeSOL, balance)
		}
		e.logger.Printf("WARN: balance unavailable, using base size: %v", err)
		return e.baseSizeSOL
	}

	// No balance to cap against: give the multiplier full range up to the
	// 2x base cap.
	return stats.SuggestTradeSize(summary, e.baseSizeSOL, e.baseSizeSOL*20)
}

// findOpen resolves a token's open position.
func (e *Engine) findOpen(ctx context.Context, tokenAddress string) (*domain.Position, error) {
	open, err := e.manager.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	for _, pos := range open {
		if pos.TokenAddress == tokenAddress {
			return pos, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", tokenAddress, ErrNoOpenPositionForToken)
}

// effectiveScore orders candidates for the buy loop.
func effectiveScore(cand *CandidateReport) int {
	if cand.Score == nil || cand.Score.Avoided() || cand.Action != "" {
		return -1
	}
	return cand.Score.Value
}

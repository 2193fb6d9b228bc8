package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/learning"
	"solana-trader/internal/market"
	"solana-trader/internal/market/stub"
	"solana-trader/internal/position"
	"solana-trader/internal/risk"
	"solana-trader/internal/storage"
	memstore "solana-trader/internal/storage/memory"
)

// Real mint addresses: snapshots must carry valid base58 token addresses.
const (
	tokenSOL  = "So11111111111111111111111111111111111111112"
	tokenUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	tokenUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	tokenBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

type fixture struct {
	engine    *Engine
	trends    *stub.TrendSource
	quoter    *stub.Quoter
	executor  *stub.Executor
	holdings  *stub.Holdings
	positions storage.PositionStore
	trades    storage.TradeRecordStore
	memory    storage.MemoryEntryStore
	manager   *position.Manager
	clock     *fakeClock
	limits    domain.Limits
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	limits := domain.DefaultLimits()

	positions := memstore.NewPositionStore()
	trades := memstore.NewTradeRecordStore()
	memory := memstore.NewMemoryEntryStore()

	manager := position.NewManager(position.Options{
		Positions: positions,
		Trades:    trades,
		Now:       clock.Now,
	})
	learner := learning.NewLearner(learning.Options{
		Store: memory,
		Now:   clock.Now,
	})

	trends := stub.NewTrendSource()
	quoter := &stub.Quoter{PriceImpactPct: 1.0, RouteCount: 2}
	executor := &stub.Executor{}
	holdings := &stub.Holdings{BalanceSOL: 10}

	f := &fixture{
		trends:    trends,
		quoter:    quoter,
		executor:  executor,
		holdings:  holdings,
		positions: positions,
		trades:    trades,
		memory:    memory,
		manager:   manager,
		clock:     clock,
		limits:    limits,
	}
	f.engine = New(Options{
		Trends:       trends,
		Prices:       trends,
		Quoter:       quoter,
		Executor:     executor,
		Holdings:     holdings,
		Manager:      manager,
		Learner:      learner,
		Memory:       memory,
		Trades:       trades,
		Limits:       limits,
		WalletPubkey: tokenSOL,
		BaseSizeSOL:  0.05,
		Now:          clock.Now,
	})
	return f
}

// hotSnapshot scores well above the entry thresholds.
func hotSnapshot(token, symbol string, observedAt int64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		TokenAddress:     token,
		Symbol:           symbol,
		Name:             symbol,
		PriceUSD:         0.001,
		Volume24hUSD:     500_000,
		LiquidityUSD:     250_000,
		PriceChange5mPct: 8.0,
		PriceChange1hPct: 15.0,
		BuyCount5m:       75,
		SellCount5m:      25,
		ObservedAt:       observedAt,
	}
}

// coldSnapshot scores below the minimum trend score.
func coldSnapshot(token, symbol string, observedAt int64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		TokenAddress:     token,
		Symbol:           symbol,
		Name:             symbol,
		PriceUSD:         0.001,
		Volume24hUSD:     120_000,
		LiquidityUSD:     60_000,
		PriceChange5mPct: -8.0,
		PriceChange1hPct: -15.0,
		BuyCount5m:       30,
		SellCount5m:      70,
		ObservedAt:       observedAt,
	}
}

func TestScan_BuysTopCandidate(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", now))
	f.trends.Add(coldSnapshot(tokenUSDT, "USDT", now))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if report.Bought != 1 {
		t.Fatalf("Bought: got %d, want 1", report.Bought)
	}
	if len(report.Candidates) != 2 {
		t.Fatalf("candidates: got %d", len(report.Candidates))
	}

	// Sorted best first.
	top := report.Candidates[0]
	if top.Score.TokenAddress != tokenBONK || top.Action != ActionBought {
		t.Errorf("top candidate: %s action=%s", top.Score.TokenAddress, top.Action)
	}
	if top.Position == nil || !top.Position.Open() {
		t.Fatal("bought candidate must carry an open position")
	}
	if top.Position.EntryPriceUSD != 0.001 {
		t.Errorf("entry price: got %v", top.Position.EntryPriceUSD)
	}

	second := report.Candidates[1]
	if second.Score.TokenAddress != tokenUSDT || second.Action != ActionSkipped {
		t.Errorf("second candidate: %s action=%s", second.Score.TokenAddress, second.Action)
	}

	if len(f.executor.Executed) != 1 {
		t.Errorf("swaps executed: got %d", len(f.executor.Executed))
	}
}

func TestScan_AutoBuyCap(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	for _, token := range []string{tokenSOL, tokenUSDC, tokenUSDT, tokenBONK} {
		f.trends.Add(hotSnapshot(token, "HOT", now))
	}

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if report.Bought != f.limits.MaxAutoBuysPerScan {
		t.Errorf("Bought: got %d, want %d", report.Bought, f.limits.MaxAutoBuysPerScan)
	}
	var capped int
	for _, cand := range report.Candidates {
		if cand.Action == ActionSkipped && cand.Note == "auto-buy cap reached" {
			capped++
		}
	}
	if capped != 1 {
		t.Errorf("cap-skipped candidates: got %d, want 1", capped)
	}
}

func TestScan_GateBlocksHighImpact(t *testing.T) {
	f := newFixture(t)
	f.quoter.PriceImpactPct = 9.0 // above the 5% limit
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli()))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if report.Bought != 0 {
		t.Fatalf("Bought: got %d, want 0", report.Bought)
	}
	cand := report.Candidates[0]
	if cand.Action != ActionBlocked {
		t.Fatalf("action: got %s", cand.Action)
	}
	if cand.DenyReason != risk.DenyPriceImpactTooHigh {
		t.Errorf("deny reason: got %s", cand.DenyReason)
	}
	if len(cand.Checklist) == 0 {
		t.Error("blocked candidate must carry the full checklist")
	}
	if len(f.executor.Executed) != 0 {
		t.Error("denied buy must not execute")
	}
}

func TestScan_AvoidListedTokenBlocked(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	err := f.memory.Append(context.Background(), &domain.MemoryEntry{
		EntryID:      "avoid-bonk",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: tokenBONK,
		Reason:       "rugged before",
		Source:       domain.MemorySourceUser,
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed avoid entry: %v", err)
	}
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", now))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	cand := report.Candidates[0]
	if cand.Action != ActionBlocked {
		t.Fatalf("action: got %s", cand.Action)
	}
	if cand.DenyReason != risk.DenyAvoidListed {
		t.Errorf("deny reason: got %s", cand.DenyReason)
	}
	// Avoid-listed tokens are never even quoted.
	if len(f.quoter.Requests) != 0 {
		t.Errorf("quotes requested: got %d, want 0", len(f.quoter.Requests))
	}
}

func TestScan_QuoteFailureDoesNotAbortCycle(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	f.quoter.Err = errors.New("aggregator down")
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", now))
	f.trends.Add(hotSnapshot(tokenUSDC, "USDC", now))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(report.Candidates) != 2 {
		t.Fatalf("candidates: got %d", len(report.Candidates))
	}
	for _, cand := range report.Candidates {
		if cand.Action != ActionFailed {
			t.Errorf("%s action: got %s, want FAILED", cand.Score.TokenAddress, cand.Action)
		}
		if cand.Err == nil {
			t.Error("failed candidate must carry the error")
		}
	}
}

func TestScan_InvalidSnapshotSkipped(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	bad := hotSnapshot(tokenUSDC, "BAD", now)
	bad.PriceUSD = 0
	f.trends.TrendingSnapshots = append(f.trends.TrendingSnapshots, bad)
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", now))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if report.Bought != 1 {
		t.Errorf("Bought: got %d, want 1", report.Bought)
	}
	var skipped *CandidateReport
	for _, cand := range report.Candidates {
		if cand.Score.TokenAddress == tokenUSDC {
			skipped = cand
		}
	}
	if skipped == nil || skipped.Action != ActionSkipped || skipped.Err == nil {
		t.Errorf("invalid snapshot candidate: %+v", skipped)
	}
}

func TestCheckExits_StopLossClosesAndLearns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()
	snap := hotSnapshot(tokenBONK, "BONK", now)
	f.trends.Add(snap)

	if _, err := f.engine.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Entry 0.001, default stop loss 20% -> 0.0008. A 35% drop crosses it
	// and trips the big-loss learning threshold.
	f.clock.advance(10 * time.Minute)
	snap.PriceUSD = 0.00065

	report, err := f.engine.CheckExits(ctx, nil)
	if err != nil {
		t.Fatalf("CheckExits failed: %v", err)
	}

	if report.Closed != 1 {
		t.Fatalf("Closed: got %d, want 1", report.Closed)
	}
	result := report.Results[0]
	if result.Trade == nil || result.Trade.ExitReason != domain.ExitReasonStopLoss {
		t.Fatalf("trade: %+v", result.Trade)
	}
	if result.Trade.PnLPct >= -30 {
		t.Errorf("PnLPct: got %v, want a big loss", result.Trade.PnLPct)
	}
	if len(result.Lessons) != 2 {
		t.Errorf("lessons: got %d, want avoid entry + lesson", len(result.Lessons))
	}

	if _, err := f.memory.GetAvoid(ctx, tokenBONK); err != nil {
		t.Errorf("token must be avoid-listed after the big loss: %v", err)
	}

	open, err := f.manager.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("OpenPositions: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open positions after close: got %d", len(open))
	}
}

func TestCheckExits_StreamPricesOverrideSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli())
	f.trends.Add(snap)

	if _, err := f.engine.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// The source still says entry price; the stream says take-profit hit.
	report, err := f.engine.CheckExits(ctx, map[string]float64{tokenBONK: 0.0016})
	if err != nil {
		t.Fatalf("CheckExits failed: %v", err)
	}
	if report.Closed != 1 {
		t.Fatalf("Closed: got %d, want 1", report.Closed)
	}
	if got := report.Results[0].Trade.ExitReason; got != domain.ExitReasonTakeProfit {
		t.Errorf("exit reason: got %s", got)
	}
}

func TestCheckExits_StreamGapFallsBackToSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()
	bonk := hotSnapshot(tokenBONK, "BONK", now)
	usdc := hotSnapshot(tokenUSDC, "USDC", now)
	f.trends.Add(bonk)
	f.trends.Add(usdc)

	if _, err := f.engine.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// The stream covers BONK at a harmless price; USDC is absent from it but
	// the source says stop-loss territory.
	usdc.PriceUSD = 0.00065
	report, err := f.engine.CheckExits(ctx, map[string]float64{tokenBONK: 0.001})
	if err != nil {
		t.Fatalf("CheckExits failed: %v", err)
	}

	if report.Closed != 1 {
		t.Fatalf("Closed: got %d, want 1", report.Closed)
	}
	for _, result := range report.Results {
		if result.Position.TokenAddress == tokenUSDC {
			if result.Trade == nil || result.Trade.ExitReason != domain.ExitReasonStopLoss {
				t.Errorf("USDC exit: %+v", result.Trade)
			}
		}
		if result.Position.TokenAddress == tokenBONK && result.Trade != nil {
			t.Errorf("BONK must stay open at the stream price")
		}
	}
}

func TestCheckExits_MissingPriceLeavesPositionOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli())
	f.trends.Add(snap)

	if _, err := f.engine.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Neither the stream nor the source resolves a price.
	snap.PriceUSD = 0
	report, err := f.engine.CheckExits(ctx, map[string]float64{})
	if err != nil {
		t.Fatalf("CheckExits failed: %v", err)
	}
	if report.Closed != 0 {
		t.Errorf("Closed: got %d, want 0", report.Closed)
	}
	open, _ := f.manager.OpenPositions(ctx)
	if len(open) != 1 {
		t.Errorf("open positions: got %d, want 1", len(open))
	}
}

func TestStatus_Aggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()
	bonk := hotSnapshot(tokenBONK, "BONK", now)
	usdc := hotSnapshot(tokenUSDC, "USDC", now)
	f.trends.Add(bonk)
	f.trends.Add(usdc)

	if _, err := f.engine.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Close one at take-profit, keep the other open.
	f.clock.advance(5 * time.Minute)
	if _, err := f.engine.CheckExits(ctx, map[string]float64{tokenBONK: 0.0016}); err != nil {
		t.Fatalf("CheckExits failed: %v", err)
	}

	status, err := f.engine.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if status.Summary.TotalTrades != 1 || status.Summary.Wins != 1 {
		t.Errorf("summary: %+v", status.Summary)
	}
	if len(status.OpenPositions) != 1 {
		t.Errorf("open positions: got %d", len(status.OpenPositions))
	}
	if status.ExposureSOL != status.OpenPositions[0].EntrySizeSOL {
		t.Errorf("exposure: got %v", status.ExposureSOL)
	}
}

func TestStatus_SerializesWithMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Status must observe the trade log and the open set from one point in
	// time, so it waits out any in-flight mutation.
	f.engine.mu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.engine.Status(ctx); err != nil {
			t.Errorf("Status failed: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("Status returned while a mutation held the engine lock")
	case <-time.After(100 * time.Millisecond):
	}

	f.engine.mu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Status never completed after the lock released")
	}
}

func TestBuyAndSell_Manual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli())
	f.trends.Add(snap)

	cand, err := f.engine.Buy(ctx, tokenBONK, 0.08)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if cand.Action != ActionBought {
		t.Fatalf("action: got %s (%v)", cand.Action, cand.Err)
	}
	if cand.SizeSOL != 0.08 {
		t.Errorf("size: got %v", cand.SizeSOL)
	}

	f.clock.advance(time.Minute)
	snap.PriceUSD = 0.0011

	result, err := f.engine.Sell(ctx, tokenBONK)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if result.Trade.ExitReason != domain.ExitReasonManual {
		t.Errorf("exit reason: got %s", result.Trade.ExitReason)
	}
	if result.Trade.PnLPct < 9.9 || result.Trade.PnLPct > 10.1 {
		t.Errorf("PnLPct: got %v, want ~10", result.Trade.PnLPct)
	}

	if _, err := f.engine.Sell(ctx, tokenBONK); !errors.Is(err, ErrNoOpenPositionForToken) {
		t.Errorf("second sell: got %v", err)
	}
}

func TestBuy_GateStillApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trends.Add(coldSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli()))

	cand, err := f.engine.Buy(ctx, tokenBONK, 0.05)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if cand.Action != ActionBlocked {
		t.Fatalf("action: got %s", cand.Action)
	}
	if cand.DenyReason != risk.DenyScoreBelowMin {
		t.Errorf("deny reason: got %s", cand.DenyReason)
	}
}

func TestBuy_UnknownToken(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.Buy(context.Background(), "not-base58!", 0.05); err == nil {
		t.Error("invalid address must fail")
	}
	if _, err := f.engine.Buy(context.Background(), tokenBONK, 0.05); !errors.Is(err, market.ErrNoMarketData) {
		t.Errorf("no market data: got %v", err)
	}
}

func TestSetLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli()))

	if _, err := f.engine.Buy(ctx, tokenBONK, 0.05); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	pos, err := f.engine.SetLimits(ctx, tokenBONK, 0.0009, 0.002)
	if err != nil {
		t.Fatalf("SetLimits failed: %v", err)
	}
	if pos.StopLossPriceUSD != 0.0009 || pos.TakeProfitPriceUSD != 0.002 {
		t.Errorf("limits: sl=%v tp=%v", pos.StopLossPriceUSD, pos.TakeProfitPriceUSD)
	}

	if _, err := f.engine.SetLimits(ctx, tokenUSDC, 1, 2); !errors.Is(err, ErrNoOpenPositionForToken) {
		t.Errorf("no position: got %v", err)
	}
}

func TestPositions_Report(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli())
	f.trends.Add(snap)

	// Nothing open yet: history fallback.
	report, err := f.engine.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(report.Open) != 0 || report.InvestedSOL != 0 {
		t.Errorf("empty report: %+v", report)
	}

	if _, err := f.engine.Buy(ctx, tokenBONK, 0.05); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	snap.PriceUSD = 0.0012

	report, err = f.engine.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(report.Open) != 1 {
		t.Fatalf("open: got %d", len(report.Open))
	}
	view := report.Open[0]
	if view.CurrentPriceUSD != 0.0012 {
		t.Errorf("live price: got %v", view.CurrentPriceUSD)
	}
	if view.PnLPct < 19.9 || view.PnLPct > 20.1 {
		t.Errorf("PnLPct: got %v, want ~20", view.PnLPct)
	}
	if report.InvestedSOL != 0.05 {
		t.Errorf("invested: got %v", report.InvestedSOL)
	}
	if report.MaxExposureSOL != f.limits.MaxPortfolioSOL {
		t.Errorf("max exposure: got %v", report.MaxExposureSOL)
	}
}

func TestPortfolio(t *testing.T) {
	f := newFixture(t)
	f.holdings.BalanceSOL = 2.5
	f.holdings.Tokens = []market.Holding{{Mint: tokenBONK, Symbol: "BONK", Amount: 100, ValueUSD: 5}}

	report, err := f.engine.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("Portfolio failed: %v", err)
	}
	if report.BalanceSOL != 2.5 || len(report.Holdings) != 1 {
		t.Errorf("portfolio: %+v", report)
	}
}

func TestMemoryContextAndGuidance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.LearnGuidance(ctx, "never chase green candles", ""); err != nil {
		t.Fatalf("LearnGuidance failed: %v", err)
	}

	report, err := f.engine.MemoryContext(ctx)
	if err != nil {
		t.Fatalf("MemoryContext failed: %v", err)
	}
	if len(report.Lessons) != 1 || report.Lessons[0].Lesson != "never chase green candles" {
		t.Errorf("lessons: %+v", report.Lessons)
	}
	if len(report.Avoids) != 0 || len(report.Patterns) != 0 {
		t.Errorf("unexpected entries: avoids=%d patterns=%d", len(report.Avoids), len(report.Patterns))
	}
	if report.Recent.TotalTrades != 0 {
		t.Errorf("recent: %+v", report.Recent)
	}
}

func TestQuotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote, err := f.engine.BuyQuote(ctx, tokenBONK, 0.1)
	if err != nil {
		t.Fatalf("BuyQuote failed: %v", err)
	}
	if quote.InputMint != market.WrappedSOLMint || quote.OutputMint != tokenBONK {
		t.Errorf("buy quote mints: %s -> %s", quote.InputMint, quote.OutputMint)
	}
	if quote.InAmount != 100_000_000 {
		t.Errorf("buy quote amount: got %d", quote.InAmount)
	}
	if quote.SlippageBps != f.limits.MaxSlippageBps {
		t.Errorf("slippage: got %d", quote.SlippageBps)
	}

	if _, err := f.engine.SellQuote(ctx, tokenBONK); !errors.Is(err, ErrNoOpenPositionForToken) {
		t.Errorf("sell quote without position: got %v", err)
	}

	f.trends.Add(hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli()))
	if _, err := f.engine.Buy(ctx, tokenBONK, 0.05); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	sellQuote, err := f.engine.SellQuote(ctx, tokenBONK)
	if err != nil {
		t.Fatalf("SellQuote failed: %v", err)
	}
	if sellQuote.InputMint != tokenBONK || sellQuote.OutputMint != market.WrappedSOLMint {
		t.Errorf("sell quote mints: %s -> %s", sellQuote.InputMint, sellQuote.OutputMint)
	}
}

func TestScan_DryRunTagsEverything(t *testing.T) {
	f := newFixture(t)
	f.engine.dryRun = true
	f.trends.Add(hotSnapshot(tokenBONK, "BONK", f.clock.Now().UnixMilli()))

	report, err := f.engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !report.DryRun {
		t.Error("scan report must be tagged dry-run")
	}
	if report.Bought != 1 {
		t.Fatalf("Bought: got %d", report.Bought)
	}
	if !report.Candidates[0].Position.DryRun {
		t.Error("position must be tagged dry-run")
	}
}

package scoring

import (
	"context"
	"errors"
	"testing"

	"solana-trader/internal/domain"
	memstore "solana-trader/internal/storage/memory"
)

// Valid 32-byte base58 mint addresses for test snapshots.
const (
	testTokenA = "So11111111111111111111111111111111111111112"
	testTokenB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func testSnapshot(token string) *domain.MarketSnapshot {
	// Neutral snapshot: every formula term lands in its no-adjustment band.
	return &domain.MarketSnapshot{
		TokenAddress: token,
		Symbol:       "TEST",
		PriceUSD:     0.001,
		Volume24hUSD: 50_000,
		LiquidityUSD: 60_000,
		BuyCount5m:   50,
		SellCount5m:  50,
		ObservedAt:   1_700_000_000_000,
	}
}

func testScorer() *Scorer {
	return NewScorer(domain.DefaultLimits())
}

func TestScore_NeutralBaseline(t *testing.T) {
	score, err := testScorer().Score(testSnapshot(testTokenA), EmptyMemoryView())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if score.Value != 50 {
		t.Errorf("expected neutral score 50, got %d", score.Value)
	}
	if score.Outcome != domain.ScoreOutcomeScored {
		t.Errorf("expected SCORED outcome, got %s", score.Outcome)
	}
}

func TestScore_BuyRatioTiers(t *testing.T) {
	tests := []struct {
		name  string
		buys  int
		sells int
		want  int
	}{
		{"strong buy pressure", 70, 30, 70},   // ratio 0.7 → +20
		{"moderate buy pressure", 60, 40, 60}, // ratio 0.6 → +10
		{"neutral", 50, 50, 50},
		{"sell pressure", 39, 61, 35}, // ratio 0.39 → -15
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(testTokenA)
			snap.BuyCount5m = tt.buys
			snap.SellCount5m = tt.sells

			score, err := testScorer().Score(snap, EmptyMemoryView())
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if score.Value != tt.want {
				t.Errorf("got %d, want %d", score.Value, tt.want)
			}
		})
	}
}

func TestScore_MomentumAdjustments(t *testing.T) {
	tests := []struct {
		name     string
		change5m float64
		change1h float64
		want     int
	}{
		{"pumping both windows", 6, 11, 70},
		{"pumping 5m only", 6, 0, 60},
		{"dumping 5m", -6, 0, 40},
		{"dumping 1h", 0, -11, 40},
		{"boundary values unadjusted", 5, 10, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(testTokenA)
			snap.PriceChange5mPct = tt.change5m
			snap.PriceChange1hPct = tt.change1h

			score, err := testScorer().Score(snap, EmptyMemoryView())
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if score.Value != tt.want {
				t.Errorf("got %d, want %d", score.Value, tt.want)
			}
		})
	}
}

func TestScore_LiquidityAndVelocity(t *testing.T) {
	tests := []struct {
		name      string
		liquidity float64
		volume    float64
		want      int
	}{
		{"deep pool", 250_000, 250_000, 60},      // liq +10, velocity 1.0 neutral
		{"decent pool", 150_000, 150_000, 55},    // liq +5
		{"high velocity", 60_000, 360_000, 55},   // velocity 6 → +5
		{"stale pool", 60_000, 20_000, 45},       // velocity 0.33 → -5
		{"deep and hot", 250_000, 1_500_000, 65}, // +10 +5
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(testTokenA)
			snap.LiquidityUSD = tt.liquidity
			snap.Volume24hUSD = tt.volume

			score, err := testScorer().Score(snap, EmptyMemoryView())
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if score.Value != tt.want {
				t.Errorf("got %d, want %d", score.Value, tt.want)
			}
		})
	}
}

func TestScore_ClampedToRange(t *testing.T) {
	// Everything negative at once: 50 -15 -10 -10 -5 = 10, still in range;
	// zero-transaction snapshot has ratio 0 → -15 as well.
	snap := testSnapshot(testTokenA)
	snap.BuyCount5m = 0
	snap.SellCount5m = 100
	snap.PriceChange5mPct = -20
	snap.PriceChange1hPct = -50
	snap.LiquidityUSD = 10_000
	snap.Volume24hUSD = 1_000

	score, err := testScorer().Score(snap, EmptyMemoryView())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.Value < 0 || score.Value > 100 {
		t.Errorf("score out of range: %d", score.Value)
	}
	if score.Value != 10 {
		t.Errorf("got %d, want 10", score.Value)
	}
}

func TestScore_RiskFlags(t *testing.T) {
	snap := testSnapshot(testTokenA)
	snap.LiquidityUSD = 10_000 // below MinLiquidityUSD 50k
	snap.Volume24hUSD = 5_000  // below MinVolume24hUSD 100k

	score, err := testScorer().Score(snap, EmptyMemoryView())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if !score.HasFlag(domain.FlagLowLiquidity) {
		t.Error("expected LOW_LIQ flag")
	}
	if !score.HasFlag(domain.FlagLowVolume) {
		t.Error("expected LOW_VOL flag")
	}
}

func TestScore_FlagsDoNotChangeValue(t *testing.T) {
	flagged := testSnapshot(testTokenA)
	flagged.LiquidityUSD = 60_000
	flagged.Volume24hUSD = 50_000 // below volume floor → LOW_VOL

	score, err := testScorer().Score(flagged, EmptyMemoryView())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if !score.HasFlag(domain.FlagLowVolume) {
		t.Fatal("expected LOW_VOL flag")
	}
	if score.Value != 50 {
		t.Errorf("flags must not change the numeric score: got %d", score.Value)
	}
}

func TestScore_AvoidedToken(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryEntryStore()
	err := store.Append(ctx, &domain.MemoryEntry{
		EntryID:      "avoid1",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: testTokenA,
		Reason:       "lost 35.0% on TEST",
		Source:       domain.MemorySourceAutoLoss,
		CreatedAt:    1000,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	view, err := BuildMemoryView(ctx, store)
	if err != nil {
		t.Fatalf("BuildMemoryView failed: %v", err)
	}

	score, err := testScorer().Score(testSnapshot(testTokenA), view)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if !score.Avoided() {
		t.Fatal("expected avoided outcome")
	}
	if score.AvoidReason != "lost 35.0% on TEST" {
		t.Errorf("AvoidReason mismatch: got %q", score.AvoidReason)
	}

	// Other tokens score normally against the same view.
	other, err := testScorer().Score(testSnapshot(testTokenB), view)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if other.Avoided() {
		t.Error("unrelated token must not be avoided")
	}
}

func TestScore_PatternBias(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryEntryStore()
	sig := domain.PatternSignature{MinScore: 60, MinBuyRatioPct: 65, MinLiquidityUSD: 100_000}
	err := store.Append(ctx, &domain.MemoryEntry{
		EntryID:   "pattern1",
		Kind:      domain.MemoryKindPattern,
		Pattern:   sig.String(),
		Source:    domain.MemorySourceAutoWin,
		CreatedAt: 1000,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	view, err := BuildMemoryView(ctx, store)
	if err != nil {
		t.Fatalf("BuildMemoryView failed: %v", err)
	}

	// Base: 50 +20 (ratio 0.7) +5 (liq 150k) = 75, matches the signature.
	snap := testSnapshot(testTokenA)
	snap.BuyCount5m = 70
	snap.SellCount5m = 30
	snap.LiquidityUSD = 150_000
	snap.Volume24hUSD = 150_000

	score, err := testScorer().Score(snap, view)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if score.BaseValue != 75 {
		t.Fatalf("BaseValue: got %d, want 75", score.BaseValue)
	}
	if score.PatternBias != 10 {
		t.Errorf("PatternBias: got %d, want 10", score.PatternBias)
	}
	if score.Value != 85 {
		t.Errorf("Value: got %d, want 85", score.Value)
	}

	// Below the signature floors → no bias.
	weak := testSnapshot(testTokenA)
	weakScore, err := testScorer().Score(weak, view)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if weakScore.PatternBias != 0 {
		t.Errorf("expected no bias for non-matching snapshot, got %d", weakScore.PatternBias)
	}
}

func TestScore_PatternBiasCapped(t *testing.T) {
	view := &MemoryView{
		avoid: map[string]string{},
		patterns: []domain.PatternSignature{
			{MinScore: 40, MinBuyRatioPct: 0, MinLiquidityUSD: 0},
			{MinScore: 45, MinBuyRatioPct: 0, MinLiquidityUSD: 0},
			{MinScore: 50, MinBuyRatioPct: 0, MinLiquidityUSD: 0},
		},
	}

	score, err := testScorer().Score(testSnapshot(testTokenA), view)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	// Multiple matching patterns still add at most one bounded bias.
	if score.PatternBias != 10 {
		t.Errorf("PatternBias: got %d, want 10", score.PatternBias)
	}
	if score.Value != 60 {
		t.Errorf("Value: got %d, want 60", score.Value)
	}
}

func TestScore_InvalidSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.MarketSnapshot)
	}{
		{"bad address", func(s *domain.MarketSnapshot) { s.TokenAddress = "not-base58!!" }},
		{"zero price", func(s *domain.MarketSnapshot) { s.PriceUSD = 0 }},
		{"negative liquidity", func(s *domain.MarketSnapshot) { s.LiquidityUSD = -1 }},
		{"missing timestamp", func(s *domain.MarketSnapshot) { s.ObservedAt = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(testTokenA)
			tt.mutate(snap)

			_, err := testScorer().Score(snap, EmptyMemoryView())
			if !errors.Is(err, domain.ErrInvalidSnapshot) {
				t.Errorf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PatternSignature is the score/flag signature stored for a winning trade.
// A snapshot matches when its score, buy ratio and liquidity all meet the
// recorded floors.
type PatternSignature struct {
	MinScore        int
	MinBuyRatioPct  float64 // percent, 0..100
	MinLiquidityUSD float64
}

// String encodes the signature in the stored memory format.
func (p PatternSignature) String() string {
	return fmt.Sprintf("score>=%d,buy_ratio>=%.0f%%,liq>=$%.0f",
		p.MinScore, p.MinBuyRatioPct, p.MinLiquidityUSD)
}

// Matches reports whether the given observation meets every floor.
func (p PatternSignature) Matches(score int, buyRatioPct, liquidityUSD float64) bool {
	return score >= p.MinScore &&
		buyRatioPct >= p.MinBuyRatioPct &&
		liquidityUSD >= p.MinLiquidityUSD
}

// ParsePatternSignature decodes a stored pattern string.
func ParsePatternSignature(s string) (PatternSignature, error) {
	var p PatternSignature
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("pattern %q: expected 3 fields, got %d", s, len(parts))
	}

	score, ok := strings.CutPrefix(parts[0], "score>=")
	if !ok {
		return p, fmt.Errorf("pattern %q: missing score field", s)
	}
	n, err := strconv.Atoi(score)
	if err != nil {
		return p, fmt.Errorf("pattern %q: score: %w", s, err)
	}
	p.MinScore = n

	ratio, ok := strings.CutPrefix(parts[1], "buy_ratio>=")
	if !ok {
		return p, fmt.Errorf("pattern %q: missing buy_ratio field", s)
	}
	ratio = strings.TrimSuffix(ratio, "%")
	r, err := strconv.ParseFloat(ratio, 64)
	if err != nil {
		return p, fmt.Errorf("pattern %q: buy_ratio: %w", s, err)
	}
	p.MinBuyRatioPct = r

	liq, ok := strings.CutPrefix(parts[2], "liq>=$")
	if !ok {
		return p, fmt.Errorf("pattern %q: missing liq field", s)
	}
	l, err := strconv.ParseFloat(liq, 64)
	if err != nil {
		return p, fmt.Errorf("pattern %q: liq: %w", s, err)
	}
	p.MinLiquidityUSD = l

	return p, nil
}

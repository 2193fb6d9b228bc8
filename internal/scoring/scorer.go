package scoring

import (
	"fmt"

	"solana-trader/internal/domain"
)

// maxPatternBias bounds the total positive bias a winning-pattern match can
// add, so remembered patterns nudge the score but never dominate it.
const maxPatternBias = 10

// Scorer computes composite trend scores from market snapshots.
// Stateless apart from the configured limits; safe for concurrent use.
type Scorer struct {
	limits domain.Limits
}

// NewScorer creates a scorer with the given limits. The limits only feed the
// risk flags; the numeric formula is fixed.
func NewScorer(limits domain.Limits) *Scorer {
	return &Scorer{limits: limits}
}

// Score rates one snapshot 0-100. Avoid-listed tokens get the avoid sentinel
// outcome and no numeric rating. A malformed snapshot returns an error
// wrapping domain.ErrInvalidSnapshot; the caller skips the candidate.
func (s *Scorer) Score(snap *domain.MarketSnapshot, view *MemoryView) (*domain.Score, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("score %s: %w", tokenOrUnknown(snap), err)
	}

	if reason, avoided := view.AvoidReason(snap.TokenAddress); avoided {
		return &domain.Score{
			TokenAddress: snap.TokenAddress,
			BuyRatio:     snap.BuyRatio(),
			Outcome:      domain.ScoreOutcomeAvoided,
			AvoidReason:  reason,
			Snapshot:     snap,
		}, nil
	}

	base := baseScore(snap)
	buyRatio := snap.BuyRatio()

	bias := 0
	for _, sig := range view.Patterns() {
		if sig.Matches(base, buyRatio*100, snap.LiquidityUSD) {
			bias = maxPatternBias
			break
		}
	}

	return &domain.Score{
		TokenAddress: snap.TokenAddress,
		Value:        clamp(base + bias),
		BaseValue:    base,
		PatternBias:  bias,
		BuyRatio:     buyRatio,
		Flags:        s.flags(snap),
		Outcome:      domain.ScoreOutcomeScored,
		Snapshot:     snap,
	}, nil
}

// baseScore is the fixed composite formula: baseline 50 adjusted by buy
// pressure, short-term momentum, liquidity depth and volume velocity.
func baseScore(snap *domain.MarketSnapshot) int {
	score := 50

	// Buy pressure over the last 5 minutes.
	buyRatio := snap.BuyRatio()
	switch {
	case buyRatio >= 0.7:
		score += 20
	case buyRatio >= 0.6:
		score += 10
	case buyRatio < 0.4:
		score -= 15
	}

	// Short-term momentum.
	if snap.PriceChange5mPct > 5 {
		score += 10
	} else if snap.PriceChange5mPct < -5 {
		score -= 10
	}
	if snap.PriceChange1hPct > 10 {
		score += 10
	} else if snap.PriceChange1hPct < -10 {
		score -= 10
	}

	// Liquidity depth.
	if snap.LiquidityUSD > 200_000 {
		score += 10
	} else if snap.LiquidityUSD > 100_000 {
		score += 5
	}

	// Volume velocity: 24h volume relative to pool depth.
	if snap.LiquidityUSD > 0 {
		velocity := snap.Volume24hUSD / snap.LiquidityUSD
		if velocity > 5 {
			score += 5
		} else if velocity < 0.5 {
			score -= 5
		}
	}

	return clamp(score)
}

// flags raises risk flags against the configured floors. Flags never change
// the numeric score; the risk gate decides what they block.
func (s *Scorer) flags(snap *domain.MarketSnapshot) []domain.ScoreFlag {
	var flags []domain.ScoreFlag
	if snap.LiquidityUSD < s.limits.MinLiquidityUSD {
		flags = append(flags, domain.FlagLowLiquidity)
	}
	if snap.Volume24hUSD < s.limits.MinVolume24hUSD {
		flags = append(flags, domain.FlagLowVolume)
	}
	return flags
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func tokenOrUnknown(snap *domain.MarketSnapshot) string {
	if snap == nil || snap.TokenAddress == "" {
		return "<unknown>"
	}
	return snap.TokenAddress
}

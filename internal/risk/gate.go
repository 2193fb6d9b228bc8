package risk

import (
	"fmt"
	"time"

	"solana-trader/internal/domain"
)

// DenyReason identifies which check blocked a buy.
type DenyReason string

// Deny reasons, in evaluation order. The first failing check wins.
const (
	DenyAvoidListed        DenyReason = "AVOID_LISTED"
	DenyScoreBelowMin      DenyReason = "SCORE_BELOW_MIN"
	DenyBuyRatioBelowMin   DenyReason = "BUY_RATIO_BELOW_MIN"
	DenyBlockingFlags      DenyReason = "BLOCKING_FLAGS"
	DenyPositionTooLarge   DenyReason = "POSITION_TOO_LARGE"
	DenyExposureExceeded   DenyReason = "EXPOSURE_EXCEEDED"
	DenyPriceImpactTooHigh DenyReason = "PRICE_IMPACT_TOO_HIGH"
	DenyDuplicatePosition  DenyReason = "DUPLICATE_POSITION"
	DenyCooldownActive     DenyReason = "COOLDOWN_ACTIVE"
)

// CheckResult records pass/fail for one safety check.
type CheckResult struct {
	Name      string
	Reason    DenyReason
	Threshold string
	Actual    string
	Pass      bool
}

// Result is the gate verdict: authorized or denied with the first failing
// check's reason, plus the full checklist for reporting.
type Result struct {
	Authorized bool
	DenyReason DenyReason // empty when authorized
	Checklist  []CheckResult
}

// Input is everything the gate needs, resolved by the engine before the call.
type Input struct {
	Score *domain.Score

	// Proposed buy.
	SizeSOL        float64
	PriceImpactPct float64

	// Portfolio state, read under the engine's mutation lock.
	OpenExposureSOL float64
	HasOpenPosition bool  // an OPEN position already exists for this token
	LastCloseAt     int64 // ms; 0 = token never closed a position
	Now             int64 // ms
}

// Gate runs the ordered safety checks that stand between a score and a buy.
// Stateless; limits are passed by value per call so a concurrent limits
// update never tears a single evaluation.
type Gate struct{}

// NewGate creates a new risk gate.
func NewGate() *Gate {
	return &Gate{}
}

// Evaluate runs every check regardless of earlier failures, so reports show
// the full picture, and denies with the first failing check's reason.
func (g *Gate) Evaluate(input Input, limits domain.Limits) *Result {
	score := input.Score

	cooldownRemaining := time.Duration(0)
	if input.LastCloseAt > 0 {
		elapsed := time.Duration(input.Now-input.LastCloseAt) * time.Millisecond
		if elapsed < limits.Cooldown {
			cooldownRemaining = limits.Cooldown - elapsed
		}
	}

	checklist := []CheckResult{
		{
			Name:      "Not avoid-listed",
			Reason:    DenyAvoidListed,
			Threshold: "absent from avoid list",
			Actual:    avoidActual(score),
			Pass:      !score.Avoided(),
		},
		{
			Name:      "Trend score",
			Reason:    DenyScoreBelowMin,
			Threshold: fmt.Sprintf(">= %d", limits.MinTrendScore),
			Actual:    fmt.Sprintf("%d", score.Value),
			Pass:      score.Value >= limits.MinTrendScore,
		},
		{
			Name:      "Buy ratio",
			Reason:    DenyBuyRatioBelowMin,
			Threshold: fmt.Sprintf(">= %.2f", limits.MinBuyRatio),
			Actual:    fmt.Sprintf("%.2f", score.BuyRatio),
			Pass:      score.BuyRatio >= limits.MinBuyRatio,
		},
		{
			Name:      "No blocking flags",
			Reason:    DenyBlockingFlags,
			Threshold: "none",
			Actual:    flagsActual(score),
			Pass:      len(score.Flags) == 0,
		},
		{
			Name:      "Position size",
			Reason:    DenyPositionTooLarge,
			Threshold: fmt.Sprintf("<= %.4f SOL", limits.MaxPositionSOL),
			Actual:    fmt.Sprintf("%.4f SOL", input.SizeSOL),
			Pass:      input.SizeSOL <= limits.MaxPositionSOL,
		},
		{
			Name:      "Portfolio exposure",
			Reason:    DenyExposureExceeded,
			Threshold: fmt.Sprintf("<= %.4f SOL", limits.MaxPortfolioSOL),
			Actual:    fmt.Sprintf("%.4f SOL", input.OpenExposureSOL+input.SizeSOL),
			Pass:      input.OpenExposureSOL+input.SizeSOL <= limits.MaxPortfolioSOL,
		},
		{
			Name:      "Price impact",
			Reason:    DenyPriceImpactTooHigh,
			Threshold: fmt.Sprintf("<= %.2f%%", limits.MaxPriceImpactPct),
			Actual:    fmt.Sprintf("%.2f%%", input.PriceImpactPct),
			Pass:      input.PriceImpactPct <= limits.MaxPriceImpactPct,
		},
		{
			Name:      "No open position",
			Reason:    DenyDuplicatePosition,
			Threshold: "none open for token",
			Actual:    fmt.Sprintf("open=%t", input.HasOpenPosition),
			Pass:      !input.HasOpenPosition,
		},
		{
			Name:      "Cooldown",
			Reason:    DenyCooldownActive,
			Threshold: fmt.Sprintf("%s since last close", limits.Cooldown),
			Actual:    cooldownActual(cooldownRemaining),
			Pass:      cooldownRemaining == 0,
		},
	}

	result := &Result{Authorized: true, Checklist: checklist}
	for _, c := range checklist {
		if !c.Pass {
			result.Authorized = false
			result.DenyReason = c.Reason
			break
		}
	}
	return result
}

func avoidActual(score *domain.Score) string {
	if score.Avoided() {
		return fmt.Sprintf("avoided: %s", score.AvoidReason)
	}
	return "not listed"
}

func flagsActual(score *domain.Score) string {
	if len(score.Flags) == 0 {
		return "none"
	}
	actual := ""
	for i, f := range score.Flags {
		if i > 0 {
			actual += ","
		}
		actual += string(f)
	}
	return actual
}

func cooldownActual(remaining time.Duration) string {
	if remaining == 0 {
		return "elapsed"
	}
	return fmt.Sprintf("%s remaining", remaining.Round(time.Second))
}

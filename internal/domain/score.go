package domain

// ScoreFlag marks a risk condition detected during scoring.
type ScoreFlag string

// Risk flags raised by the scorer.
const (
	FlagLowLiquidity ScoreFlag = "LOW_LIQ"
	FlagLowVolume    ScoreFlag = "LOW_VOL"
)

// ScoreOutcome distinguishes a numeric score from the avoid sentinel.
type ScoreOutcome string

const (
	// ScoreOutcomeScored means the token received a normal numeric score.
	ScoreOutcomeScored ScoreOutcome = "SCORED"
	// ScoreOutcomeAvoided means the token is on the avoid list; the numeric
	// value is irrelevant and the token must never be bought.
	ScoreOutcomeAvoided ScoreOutcome = "AVOIDED"
)

// Score is the composite 0-100 trend rating for one snapshot.
// Created per scan cycle; never mutated.
type Score struct {
	TokenAddress string
	Value        int // 0..100, after bias
	BaseValue    int // 0..100, before pattern bias
	PatternBias  int // bounded positive bias from winning-pattern match
	BuyRatio     float64
	Flags        []ScoreFlag
	Outcome      ScoreOutcome
	AvoidReason  string // set when Outcome == ScoreOutcomeAvoided

	// Snapshot the score was computed from.
	Snapshot *MarketSnapshot
}

// HasFlag reports whether the score carries the given flag.
func (s *Score) HasFlag(f ScoreFlag) bool {
	for _, have := range s.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Avoided reports whether the token is avoid-listed.
func (s *Score) Avoided() bool {
	return s.Outcome == ScoreOutcomeAvoided
}

package learning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/idhash"
	"solana-trader/internal/storage"
)

// Outcome thresholds, percent. Both boundaries are exclusive: a trade landing
// exactly on one teaches nothing.
const (
	bigLossPct = -30
	bigWinPct  = 50
)

// ErrEmptyGuidance is returned when user guidance has no content.
var ErrEmptyGuidance = errors.New("empty guidance")

// Options configures a Learner.
type Options struct {
	Store  storage.MemoryEntryStore
	Logger *log.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Learner turns trade outcomes into strategy memory. A big loss avoid-lists
// the token and records a lesson; a big win records the entry signature as a
// winning pattern. The learner is the only writer of memory entries.
type Learner struct {
	store  storage.MemoryEntryStore
	logger *log.Logger
	now    func() time.Time
}

// NewLearner creates a learner.
func NewLearner(opts Options) *Learner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Learner{store: opts.Store, logger: logger, now: now}
}

// Learn inspects a closed trade and appends the memory entries it warrants.
// Returns the appended entries; an in-band outcome returns none. Dry-run
// trades teach the same as real ones.
func (l *Learner) Learn(ctx context.Context, trade *domain.TradeRecord) ([]*domain.MemoryEntry, error) {
	if trade == nil {
		return nil, fmt.Errorf("learn: %w", storage.ErrInvalidInput)
	}

	switch {
	case trade.PnLPct < bigLossPct:
		return l.learnFromLoss(ctx, trade)
	case trade.PnLPct > bigWinPct:
		return l.learnFromWin(ctx, trade)
	default:
		return nil, nil
	}
}

func (l *Learner) learnFromLoss(ctx context.Context, trade *domain.TradeRecord) ([]*domain.MemoryEntry, error) {
	createdAt := l.now().UnixMilli()
	var appended []*domain.MemoryEntry

	// One avoid entry per token; a repeat loss doesn't re-list it.
	_, err := l.store.GetAvoid(ctx, trade.TokenAddress)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		reason := fmt.Sprintf("lost %.1f%% on %s (%s)", math.Abs(trade.PnLPct), symbolOf(trade), trade.ExitReason)
		avoid := &domain.MemoryEntry{
			EntryID:      idhash.ComputeMemoryEntryID(string(domain.MemoryKindAvoid), trade.TokenAddress, reason, createdAt),
			Kind:         domain.MemoryKindAvoid,
			TokenAddress: trade.TokenAddress,
			Reason:       reason,
			Source:       domain.MemorySourceAutoLoss,
			CreatedAt:    createdAt,
		}
		if err := l.store.Append(ctx, avoid); err != nil {
			return nil, fmt.Errorf("append avoid entry: %w", err)
		}
		appended = append(appended, avoid)
		l.logger.Printf("avoid-listed %s: %s", symbolOf(trade), reason)
	case err != nil:
		return nil, fmt.Errorf("check avoid entry: %w", err)
	}

	lessonText := fmt.Sprintf(
		"big loss on %s: score=%d, buy_ratio=%.0f%%, liq=$%.0f, exit=%s; be more cautious with similar setups",
		symbolOf(trade), trade.EntryScore, trade.EntryBuyRatio*100, trade.EntryLiquidityUSD, trade.ExitReason)
	lesson := &domain.MemoryEntry{
		EntryID:      idhash.ComputeMemoryEntryID(string(domain.MemoryKindLesson), trade.TokenAddress, lessonText, createdAt),
		Kind:         domain.MemoryKindLesson,
		TokenAddress: trade.TokenAddress,
		Lesson:       lessonText,
		Source:       domain.MemorySourceAutoLoss,
		CreatedAt:    createdAt,
	}
	if err := l.store.Append(ctx, lesson); err != nil {
		return nil, fmt.Errorf("append loss lesson: %w", err)
	}
	appended = append(appended, lesson)
	return appended, nil
}

func (l *Learner) learnFromWin(ctx context.Context, trade *domain.TradeRecord) ([]*domain.MemoryEntry, error) {
	createdAt := l.now().UnixMilli()
	sig := domain.PatternSignature{
		MinScore:        trade.EntryScore,
		MinBuyRatioPct:  trade.EntryBuyRatio * 100,
		MinLiquidityUSD: trade.EntryLiquidityUSD,
	}

	pattern := &domain.MemoryEntry{
		EntryID:   idhash.ComputeMemoryEntryID(string(domain.MemoryKindPattern), "", sig.String(), createdAt),
		Kind:      domain.MemoryKindPattern,
		Pattern:   sig.String(),
		Source:    domain.MemorySourceAutoWin,
		CreatedAt: createdAt,
	}
	if err := l.store.Append(ctx, pattern); err != nil {
		return nil, fmt.Errorf("append pattern entry: %w", err)
	}
	l.logger.Printf("recorded winning pattern from %s: %s", symbolOf(trade), sig.String())
	return []*domain.MemoryEntry{pattern}, nil
}

// AddGuidance appends user-provided guidance verbatim as a lesson. The token
// scope is optional.
func (l *Learner) AddGuidance(ctx context.Context, lesson, tokenAddress string) (*domain.MemoryEntry, error) {
	if strings.TrimSpace(lesson) == "" {
		return nil, ErrEmptyGuidance
	}

	createdAt := l.now().UnixMilli()
	entry := &domain.MemoryEntry{
		EntryID:      idhash.ComputeMemoryEntryID(string(domain.MemoryKindLesson), tokenAddress, lesson, createdAt),
		Kind:         domain.MemoryKindLesson,
		TokenAddress: tokenAddress,
		Lesson:       lesson,
		Source:       domain.MemorySourceUser,
		CreatedAt:    createdAt,
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append guidance: %w", err)
	}
	return entry, nil
}

func symbolOf(trade *domain.TradeRecord) string {
	if trade.Symbol != "" {
		return trade.Symbol
	}
	return trade.TokenAddress
}

package scoring

import (
	"context"
	"fmt"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// AvoidLookup answers whether a token is avoid-listed. The risk gate and the
// scorer consume this instead of the memory store so a scan cycle sees one
// consistent view.
type AvoidLookup interface {
	// AvoidReason returns the recorded reason and true if the token is
	// avoid-listed.
	AvoidReason(tokenAddress string) (string, bool)
}

// MemoryView is a point-in-time snapshot of the strategy memory: the avoid
// set and the winning-pattern signatures. Built once per scan cycle and read
// without locking; concurrent learner writes land in the next cycle's view.
type MemoryView struct {
	avoid    map[string]string // token address -> reason
	patterns []domain.PatternSignature
}

var _ AvoidLookup = (*MemoryView)(nil)

// BuildMemoryView loads the avoid set and pattern signatures from the store.
// Unparseable pattern entries are skipped; they degrade bias, never scoring.
func BuildMemoryView(ctx context.Context, store storage.MemoryEntryStore) (*MemoryView, error) {
	view := &MemoryView{
		avoid: make(map[string]string),
	}

	avoids, err := store.GetByKind(ctx, domain.MemoryKindAvoid, 0)
	if err != nil {
		return nil, fmt.Errorf("load avoid entries: %w", err)
	}
	for _, e := range avoids {
		if _, exists := view.avoid[e.TokenAddress]; !exists {
			view.avoid[e.TokenAddress] = e.Reason
		}
	}

	patterns, err := store.GetByKind(ctx, domain.MemoryKindPattern, 0)
	if err != nil {
		return nil, fmt.Errorf("load pattern entries: %w", err)
	}
	for _, e := range patterns {
		sig, err := domain.ParsePatternSignature(e.Pattern)
		if err != nil {
			continue
		}
		view.patterns = append(view.patterns, sig)
	}

	return view, nil
}

// EmptyMemoryView returns a view with no avoid entries and no patterns.
func EmptyMemoryView() *MemoryView {
	return &MemoryView{avoid: make(map[string]string)}
}

// AvoidReason returns the recorded reason and true if the token is avoid-listed.
func (v *MemoryView) AvoidReason(tokenAddress string) (string, bool) {
	reason, ok := v.avoid[tokenAddress]
	return reason, ok
}

// Patterns returns the winning-pattern signatures in creation order.
func (v *MemoryView) Patterns() []domain.PatternSignature {
	return v.patterns
}

package domain

// MemoryEntryKind tags what a memory entry records.
type MemoryEntryKind string

const (
	// MemoryKindAvoid excludes a token from all future buys.
	MemoryKindAvoid MemoryEntryKind = "AVOID"
	// MemoryKindPattern records a score/flag signature of a winning trade.
	MemoryKindPattern MemoryEntryKind = "PATTERN"
	// MemoryKindLesson is freeform text, from trade outcomes or the user.
	MemoryKindLesson MemoryEntryKind = "LESSON"
)

// Memory entry sources.
const (
	MemorySourceAutoLoss = "auto_loss"
	MemorySourceAutoWin  = "auto_win"
	MemorySourceUser     = "user"
)

// MemoryEntry is one record in the strategy memory. Append-only; written
// only by the learner, read by the scorer and the risk gate.
type MemoryEntry struct {
	EntryID string
	Kind    MemoryEntryKind

	// TokenAddress scopes the entry to a token. Required for AVOID,
	// optional for LESSON, empty for PATTERN.
	TokenAddress string

	Reason  string // AVOID: why the token is excluded
	Pattern string // PATTERN: encoded signature, see PatternSignature
	Lesson  string // LESSON: freeform text

	Source    string // auto_loss | auto_win | user
	CreatedAt int64  // Unix timestamp in milliseconds
}

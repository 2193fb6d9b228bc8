package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

func TestMemoryEntryStore_AppendAndGetAvoid(t *testing.T) {
	store := NewMemoryEntryStore()
	ctx := context.Background()

	entry := &domain.MemoryEntry{
		EntryID:      "e1",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: "TokenAAA",
		Reason:       "lost 35.0% on AAA",
		Source:       domain.MemorySourceAutoLoss,
		CreatedAt:    1000,
	}

	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.GetAvoid(ctx, "TokenAAA")
	if err != nil {
		t.Fatalf("GetAvoid failed: %v", err)
	}
	if got.Reason != "lost 35.0% on AAA" {
		t.Errorf("Reason mismatch: got %q", got.Reason)
	}

	if _, err := store.GetAvoid(ctx, "TokenBBB"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown token, got %v", err)
	}
}

func TestMemoryEntryStore_AvoidRequiresToken(t *testing.T) {
	store := NewMemoryEntryStore()
	ctx := context.Background()

	entry := &domain.MemoryEntry{
		EntryID: "e1",
		Kind:    domain.MemoryKindAvoid,
		Reason:  "no token",
	}

	err := store.Append(ctx, entry)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestMemoryEntryStore_DuplicateKey(t *testing.T) {
	store := NewMemoryEntryStore()
	ctx := context.Background()

	entry := &domain.MemoryEntry{
		EntryID: "e1",
		Kind:    domain.MemoryKindLesson,
		Lesson:  "wait for volume confirmation",
	}

	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	err := store.Append(ctx, entry)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestMemoryEntryStore_GetByKindLimit(t *testing.T) {
	store := NewMemoryEntryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &domain.MemoryEntry{
			EntryID:   fmt.Sprintf("lesson%d", i),
			Kind:      domain.MemoryKindLesson,
			Lesson:    fmt.Sprintf("lesson %d", i),
			CreatedAt: int64(i * 1000),
		}
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	got, err := store.GetByKind(ctx, domain.MemoryKindLesson, 2)
	if err != nil {
		t.Fatalf("GetByKind failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	// Most recent two, ascending within the result.
	if got[0].EntryID != "lesson3" || got[1].EntryID != "lesson4" {
		t.Errorf("Wrong entries: got [%s, %s]", got[0].EntryID, got[1].EntryID)
	}
}

func TestMemoryEntryStore_LessonEviction(t *testing.T) {
	store := NewMemoryEntryStore()
	ctx := context.Background()

	avoid := &domain.MemoryEntry{
		EntryID:      "avoid1",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: "TokenAAA",
		Reason:       "rug",
		CreatedAt:    1,
	}
	if err := store.Append(ctx, avoid); err != nil {
		t.Fatalf("Append avoid failed: %v", err)
	}

	for i := 0; i < maxLessons+10; i++ {
		entry := &domain.MemoryEntry{
			EntryID:   fmt.Sprintf("lesson%04d", i),
			Kind:      domain.MemoryKindLesson,
			Lesson:    "some lesson",
			CreatedAt: int64(i),
		}
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Append lesson %d failed: %v", i, err)
		}
	}

	lessons, err := store.GetByKind(ctx, domain.MemoryKindLesson, 0)
	if err != nil {
		t.Fatalf("GetByKind failed: %v", err)
	}
	if len(lessons) != maxLessons {
		t.Errorf("Expected %d lessons after eviction, got %d", maxLessons, len(lessons))
	}
	// Oldest lessons were dropped first.
	if lessons[0].EntryID != "lesson0010" {
		t.Errorf("Expected oldest surviving lesson to be lesson0010, got %s", lessons[0].EntryID)
	}

	// Avoid entries are never evicted.
	if _, err := store.GetAvoid(ctx, "TokenAAA"); err != nil {
		t.Errorf("Avoid entry was evicted: %v", err)
	}
}

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

func TestMemoryEntryStore_AppendAndGetAvoid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMemoryEntryStore(pool)

	entry := &domain.MemoryEntry{
		EntryID:      "avoid-001",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: "TokenAAA",
		Reason:       "lost 35.0% on TEST (STOP_LOSS)",
		Source:       domain.MemorySourceAutoLoss,
		CreatedAt:    1000,
	}
	require.NoError(t, store.Append(ctx, entry))

	retrieved, err := store.GetAvoid(ctx, "TokenAAA")
	require.NoError(t, err)
	assert.Equal(t, entry.Reason, retrieved.Reason)
	assert.Equal(t, domain.MemoryKindAvoid, retrieved.Kind)

	_, err = store.GetAvoid(ctx, "TokenZZZ")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryEntryStore_AvoidRequiresToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMemoryEntryStore(pool)

	err := store.Append(ctx, &domain.MemoryEntry{
		EntryID:   "avoid-001",
		Kind:      domain.MemoryKindAvoid,
		Reason:    "no token",
		Source:    domain.MemorySourceAutoLoss,
		CreatedAt: 1000,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestMemoryEntryStore_GetByKindLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMemoryEntryStore(pool)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &domain.MemoryEntry{
			EntryID:   fmt.Sprintf("lesson-%03d", i),
			Kind:      domain.MemoryKindLesson,
			Lesson:    fmt.Sprintf("lesson %d", i),
			Source:    domain.MemorySourceUser,
			CreatedAt: int64(1000 + i*100),
		}))
	}

	// Most recent 2, returned oldest-first within the window.
	lessons, err := store.GetByKind(ctx, domain.MemoryKindLesson, 2)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "lesson-003", lessons[0].EntryID)
	assert.Equal(t, "lesson-004", lessons[1].EntryID)

	patterns, err := store.GetByKind(ctx, domain.MemoryKindPattern, 0)
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestMemoryEntryStore_LessonEviction(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMemoryEntryStore(pool)

	require.NoError(t, store.Append(ctx, &domain.MemoryEntry{
		EntryID:      "avoid-keep",
		Kind:         domain.MemoryKindAvoid,
		TokenAddress: "TokenAAA",
		Reason:       "rugged",
		Source:       domain.MemorySourceAutoLoss,
		CreatedAt:    1,
	}))

	for i := 0; i < maxLessons+10; i++ {
		require.NoError(t, store.Append(ctx, &domain.MemoryEntry{
			EntryID:   fmt.Sprintf("lesson-%04d", i),
			Kind:      domain.MemoryKindLesson,
			Lesson:    fmt.Sprintf("lesson %d", i),
			Source:    domain.MemorySourceUser,
			CreatedAt: int64(1000 + i),
		}))
	}

	lessons, err := store.GetByKind(ctx, domain.MemoryKindLesson, 0)
	require.NoError(t, err)
	require.Len(t, lessons, maxLessons)

	// The oldest lessons are evicted, the avoid entry never is.
	assert.Equal(t, "lesson-0010", lessons[0].EntryID)

	avoid, err := store.GetAvoid(ctx, "TokenAAA")
	require.NoError(t, err)
	assert.Equal(t, "rugged", avoid.Reason)
}

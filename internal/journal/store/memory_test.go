package store

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/journal/models"
	"chronicle/pkg/platform/sentinel"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func newEntry(eventType string, userID int64) *models.JournalEntry {
	return &models.JournalEntry{
		EventType:         eventType,
		UserID:            int64Ptr(userID),
		Username:          strPtr("user-" + strconv.FormatInt(userID, 10)),
		EventTimestamp:    time.Now(),
		ReceivedTimestamp: time.Now(),
	}
}

func TestMemoryStore_AppendAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.Append(ctx, newEntry("USER_CREATED", int64(i)))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestMemoryStore_GetByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	id, err := s.Append(ctx, newEntry("USER_CREATED", 42))
	require.NoError(t, err)

	entry, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "USER_CREATED", entry.EventType)
	assert.Equal(t, int64(42), *entry.UserID)
}

func TestMemoryStore_GetByID_NotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	const n = 23
	for i := 0; i < n; i++ {
		_, err := s.Append(ctx, newEntry("USER_CREATED", int64(i)))
		require.NoError(t, err)
	}

	// Walking all pages of size 5 yields exactly n distinct entries with no
	// duplicates and no gaps, in id order.
	seen := make(map[int64]bool)
	var lastID int64
	for offset := 0; offset < n; offset += 5 {
		entries, total, err := s.List(ctx, offset, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(n), total)
		for _, e := range entries {
			assert.False(t, seen[e.ID], "entry %d returned twice", e.ID)
			assert.Greater(t, e.ID, lastID, "order must be stable")
			seen[e.ID] = true
			lastID = e.ID
		}
	}
	assert.Len(t, seen, n)
}

func TestMemoryStore_ListOffsetPastEnd(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Append(ctx, newEntry("USER_CREATED", 1))
	require.NoError(t, err)

	entries, total, err := s.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int64(1), total)
}

func TestMemoryStore_ListByUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, newEntry("USER_UPDATED", 7))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, newEntry("USER_UPDATED", 8))
	require.NoError(t, err)

	// An entry without a user id never matches a user query.
	_, err = s.Append(ctx, &models.JournalEntry{
		EventType:         "USER_DELETED",
		EventTimestamp:    time.Now(),
		ReceivedTimestamp: time.Now(),
	})
	require.NoError(t, err)

	entries, total, err := s.ListByUser(ctx, 7, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, int64(7), *e.UserID)
	}
}

func TestMemoryStore_ListByEventType(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Append(ctx, newEntry("USER_CREATED", 1))
	require.NoError(t, err)
	_, err = s.Append(ctx, newEntry("ROLE_ASSIGNED", 1))
	require.NoError(t, err)

	entries, total, err := s.ListByEventType(ctx, "ROLE_ASSIGNED", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "ROLE_ASSIGNED", entries[0].EventType)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, newEntry("USER_CREATED", int64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, total, err := s.List(ctx, 0, goroutines)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), total)

	// Every id assigned exactly once.
	seen := make(map[int64]bool)
	for _, e := range entries {
		assert.False(t, seen[e.ID])
		seen[e.ID] = true
	}
	assert.Len(t, seen, goroutines)
}

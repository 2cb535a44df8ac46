package store

import (
	"context"
	"fmt"
	"sync"

	"chronicle/internal/journal/models"
	"chronicle/pkg/platform/sentinel"
)

// MemoryStore is an in-memory journal for tests and dev mode. Entries are
// held in insertion order; ids are assigned monotonically from 1.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.JournalEntry
	nextID  int64
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Append(_ context.Context, entry *models.JournalEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, stored)
	return stored.ID, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			entry := s.entries[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("journal entry %d: %w", id, sentinel.ErrNotFound)
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]models.JournalEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.entries, offset, limit)
}

func (s *MemoryStore) ListByUser(_ context.Context, userID int64, offset, limit int) ([]models.JournalEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.JournalEntry
	for _, e := range s.entries {
		if e.UserID != nil && *e.UserID == userID {
			matched = append(matched, e)
		}
	}
	return page(matched, offset, limit)
}

func (s *MemoryStore) ListByEventType(_ context.Context, eventType string, offset, limit int) ([]models.JournalEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.JournalEntry
	for _, e := range s.entries {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return page(matched, offset, limit)
}

// page slices under the caller's lock, so rows and count come from the same
// snapshot.
func page(entries []models.JournalEntry, offset, limit int) ([]models.JournalEntry, int64, error) {
	total := int64(len(entries))
	if offset < 0 || offset >= len(entries) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(entries) {
		end = len(entries)
	}
	return append([]models.JournalEntry(nil), entries[offset:end]...), total, nil
}

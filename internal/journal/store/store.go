// Package store persists journal entries. The journal is append-only: insert
// is the only mutation in the contract, and it is performed exclusively by
// the event consumer.
package store

import (
	"context"

	"chronicle/internal/journal/models"
)

// Store is the append-only journal contract. List operations return the rows
// plus a total count taken from the same snapshot, so a page is never
// inconsistent with its count under concurrent appends.
type Store interface {
	// Append inserts one entry and returns the assigned id. All-or-nothing:
	// a failed append writes nothing.
	Append(ctx context.Context, entry *models.JournalEntry) (int64, error)
	// GetByID returns sentinel.ErrNotFound (wrapped) when absent.
	GetByID(ctx context.Context, id int64) (*models.JournalEntry, error)
	List(ctx context.Context, offset, limit int) ([]models.JournalEntry, int64, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]models.JournalEntry, int64, error)
	ListByEventType(ctx context.Context, eventType string, offset, limit int) ([]models.JournalEntry, int64, error)
}

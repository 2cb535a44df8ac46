// Package service exposes read access to the journal. There is deliberately
// no write operation here: the event consumer is the journal's only writer.
package service

import (
	"context"
	"errors"
	"fmt"

	"chronicle/internal/journal/models"
	"chronicle/internal/journal/store"
	dErrors "chronicle/pkg/domain-errors"
	"chronicle/pkg/platform/sentinel"
)

const (
	// DefaultPageSize matches the read API default.
	DefaultPageSize = 20
	// MaxPageSize caps a single page request.
	MaxPageSize = 100
)

// Service answers paginated journal queries.
type Service struct {
	store store.Store
}

// New creates the query service.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// normalize clamps page parameters to sane bounds.
func normalize(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// GetPage returns one page of all entries in insertion order.
func (s *Service) GetPage(ctx context.Context, page, size int) (models.Page, error) {
	page, size = normalize(page, size)
	entries, total, err := s.store.List(ctx, page*size, size)
	if err != nil {
		return models.Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "list journal entries")
	}
	return models.NewPage(entries, total, page, size), nil
}

// GetByID returns a single entry, or a not-found domain error.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.JournalEntry, error) {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("journal entry %d not found", id))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get journal entry")
	}
	return entry, nil
}

// GetPageByUser returns one page of the entries recorded for a user.
func (s *Service) GetPageByUser(ctx context.Context, userID int64, page, size int) (models.Page, error) {
	page, size = normalize(page, size)
	entries, total, err := s.store.ListByUser(ctx, userID, page*size, size)
	if err != nil {
		return models.Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "list journal entries by user")
	}
	return models.NewPage(entries, total, page, size), nil
}

// GetPageByEventType returns one page of the entries of a given event type.
func (s *Service) GetPageByEventType(ctx context.Context, eventType string, page, size int) (models.Page, error) {
	if eventType == "" {
		return models.Page{}, dErrors.New(dErrors.CodeBadRequest, "event type is required")
	}
	page, size = normalize(page, size)
	entries, total, err := s.store.ListByEventType(ctx, eventType, page*size, size)
	if err != nil {
		return models.Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "list journal entries by event type")
	}
	return models.NewPage(entries, total, page, size), nil
}

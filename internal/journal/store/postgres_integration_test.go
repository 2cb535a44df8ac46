//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronicle/internal/journal/models"
	"chronicle/internal/journal/store"
	"chronicle/pkg/platform/sentinel"
	"chronicle/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "journal_entries"))
}

func (s *PostgresStoreSuite) appendEntry(userID int64, eventType string) int64 {
	s.T().Helper()
	username := fmt.Sprintf("user-%d", userID)
	id, err := s.store.Append(context.Background(), &models.JournalEntry{
		EventType:         eventType,
		UserID:            &userID,
		Username:          &username,
		EventTimestamp:    time.Now().UTC(),
		ReceivedTimestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreSuite) TestAppendAndGet() {
	details := `{"email":"a@x.com"}`
	userID := int64(42)
	username := "alice"
	origin := time.Now().UTC().Truncate(time.Millisecond)

	id, err := s.store.Append(context.Background(), &models.JournalEntry{
		EventType:         "USER_CREATED",
		UserID:            &userID,
		Username:          &username,
		EventTimestamp:    origin,
		DetailsJSON:       &details,
		ReceivedTimestamp: origin.Add(time.Second),
	})
	s.Require().NoError(err)

	entry, err := s.store.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Equal("USER_CREATED", entry.EventType)
	s.Equal(int64(42), *entry.UserID)
	s.Equal("alice", *entry.Username)
	s.JSONEq(details, *entry.DetailsJSON)
	s.True(entry.EventTimestamp.Equal(origin))
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.GetByID(context.Background(), 12345)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestNullableColumnsRoundTrip() {
	id, err := s.store.Append(context.Background(), &models.JournalEntry{
		EventType:         "USER_DELETED",
		EventTimestamp:    time.Now().UTC(),
		ReceivedTimestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)

	entry, err := s.store.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Nil(entry.UserID)
	s.Nil(entry.Username)
	s.Nil(entry.DetailsJSON)
}

func (s *PostgresStoreSuite) TestPaginationWalksEveryEntryOnce() {
	const entries = 23
	for i := 0; i < entries; i++ {
		s.appendEntry(int64(i%3), "USER_CREATED")
	}

	seen := make(map[int64]bool)
	for offset := 0; ; offset += 5 {
		page, total, err := s.store.List(context.Background(), offset, 5)
		s.Require().NoError(err)
		s.Equal(int64(entries), total)
		if len(page) == 0 {
			break
		}
		for _, e := range page {
			s.False(seen[e.ID], "entry %d returned twice", e.ID)
			seen[e.ID] = true
		}
	}
	s.Len(seen, entries)
}

func (s *PostgresStoreSuite) TestEmptyPagePastEndStillCounts() {
	s.appendEntry(1, "USER_CREATED")

	page, total, err := s.store.List(context.Background(), 100, 10)
	s.Require().NoError(err)
	s.Empty(page)
	s.Equal(int64(1), total)
}

func (s *PostgresStoreSuite) TestFilters() {
	s.appendEntry(42, "USER_CREATED")
	s.appendEntry(42, "ROLE_ASSIGNED")
	s.appendEntry(99, "USER_CREATED")

	byUser, total, err := s.store.ListByUser(context.Background(), 42, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	for _, e := range byUser {
		s.Equal(int64(42), *e.UserID)
	}

	byType, total, err := s.store.ListByEventType(context.Background(), "ROLE_ASSIGNED", 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("ROLE_ASSIGNED", byType[0].EventType)
}

// TestConcurrentAppends verifies the journal accepts concurrent writers, as
// the consumer processes partitions in parallel.
func (s *PostgresStoreSuite) TestConcurrentAppends() {
	const goroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := int64(n)
			username := fmt.Sprintf("user-%d", n)
			_, err := s.store.Append(context.Background(), &models.JournalEntry{
				EventType:         "USER_CREATED",
				UserID:            &userID,
				Username:          &username,
				EventTimestamp:    time.Now().UTC(),
				ReceivedTimestamp: time.Now().UTC(),
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	_, total, err := s.store.List(context.Background(), 0, 1)
	s.Require().NoError(err)
	s.Equal(int64(goroutines), total)
}

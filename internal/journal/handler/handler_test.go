package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/journal/models"
	"chronicle/internal/journal/service"
	"chronicle/internal/journal/store"
	"chronicle/internal/token"
)

const testSecret = "journal-handler-secret-0123456789-ok"

type fixture struct {
	router *chi.Mux
	codec  *token.Codec
	store  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := token.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	memory := store.NewMemory()
	svc := service.New(memory)
	h := New(svc, codec, slog.New(slog.DiscardHandler))

	router := chi.NewRouter()
	h.Register(router)

	return &fixture{router: router, codec: codec, store: memory}
}

func (f *fixture) seed(t *testing.T, n int, userID int64, eventType string) {
	t.Helper()
	for i := 0; i < n; i++ {
		uid := userID
		name := "alice"
		_, err := f.store.Append(context.Background(), &models.JournalEntry{
			EventType:         eventType,
			UserID:            &uid,
			Username:          &name,
			EventTimestamp:    time.Now().UTC(),
			ReceivedTimestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func (f *fixture) get(t *testing.T, path string, roles []string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if roles != nil {
		signed, err := f.codec.Mint("admin", roles)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageResponse {
	t.Helper()
	var page pageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func adminRoles() []string { return []string{"ROLE_USER", "ROLE_ADMIN"} }

func TestListEvents_DefaultPage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 25, 42, "USER_CREATED")

	rec := f.get(t, "/api/journal/events", adminRoles())
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	assert.Equal(t, int64(25), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 0, page.Number)
	assert.Equal(t, 20, page.Size)
	assert.Len(t, page.Content, 20)
}

func TestListEvents_ExplicitPaging(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 12, 42, "USER_CREATED")

	rec := f.get(t, "/api/journal/events?page=2&size=5", adminRoles())
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 5, page.Size)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, 3, page.TotalPages)
}

func TestListEvents_RequiresAdmin(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/journal/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.get(t, "/api/journal/events", []string{"ROLE_USER"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetEvent_ByID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 7, "USER_UPDATED")

	rec := f.get(t, "/api/journal/events/1", adminRoles())
	require.Equal(t, http.StatusOK, rec.Code)

	var entry entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "USER_UPDATED", entry.EventType)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(7), *entry.UserID)
}

func TestGetEvent_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/journal/events/999", adminRoles())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEvent_InvalidID(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/journal/events/abc", adminRoles())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEventsByUser_FiltersOtherUsers(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3, 42, "USER_CREATED")
	f.seed(t, 2, 99, "USER_CREATED")

	rec := f.get(t, "/api/journal/events/user/42", adminRoles())
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	assert.Equal(t, int64(3), page.TotalElements)
	for _, e := range page.Content {
		require.NotNil(t, e.UserID)
		assert.Equal(t, int64(42), *e.UserID)
	}
}

func TestListEventsByType(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2, 1, "USER_CREATED")
	f.seed(t, 4, 1, "ROLE_ASSIGNED")

	rec := f.get(t, "/api/journal/events/type/ROLE_ASSIGNED", adminRoles())
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	assert.Equal(t, int64(4), page.TotalElements)
	for _, e := range page.Content {
		assert.Equal(t, "ROLE_ASSIGNED", e.EventType)
	}
}

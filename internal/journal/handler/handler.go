package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chronicle/internal/journal/models"
	"chronicle/internal/platform/middleware"
	"chronicle/internal/transport/http/shared"
	"chronicle/internal/transport/http/shared/json"
	dErrors "chronicle/pkg/domain-errors"
)

// AdminAuthority is required for every journal read; the journal exposes the
// full mutation history of all users.
const AdminAuthority = "ROLE_ADMIN"

// Service defines the query operations the read API needs.
type Service interface {
	GetPage(ctx context.Context, page, size int) (models.Page, error)
	GetByID(ctx context.Context, id int64) (*models.JournalEntry, error)
	GetPageByUser(ctx context.Context, userID int64, page, size int) (models.Page, error)
	GetPageByEventType(ctx context.Context, eventType string, page, size int) (models.Page, error)
}

// Handler serves the journal read API.
type Handler struct {
	logger  *slog.Logger
	journal Service
	codec   middleware.TokenCodec
}

// New creates the read API handler.
func New(journal Service, codec middleware.TokenCodec, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		journal: journal,
		codec:   codec,
	}
}

// Register mounts the journal routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	journalRouter := chi.NewRouter()
	journalRouter.Use(middleware.Recovery(h.logger))
	journalRouter.Use(middleware.RequestID)
	journalRouter.Use(middleware.Logger(h.logger))
	journalRouter.Use(middleware.Timeout(30 * time.Second))
	journalRouter.Use(middleware.Authenticate(h.codec, h.logger))
	journalRouter.Use(middleware.RequireAuthority(AdminAuthority, h.logger))
	journalRouter.Get("/api/journal/events", h.handleListEvents)
	journalRouter.Get("/api/journal/events/{id}", h.handleGetEvent)
	journalRouter.Get("/api/journal/events/user/{userId}", h.handleListEventsByUser)
	journalRouter.Get("/api/journal/events/type/{eventType}", h.handleListEventsByType)

	r.Mount("/", journalRouter)
}

// entryResponse is the wire shape of a journal entry.
type entryResponse struct {
	ID                int64     `json:"id"`
	EventType         string    `json:"eventType"`
	UserID            *int64    `json:"userId"`
	Username          *string   `json:"username"`
	EventTimestamp    time.Time `json:"eventTimestamp"`
	DetailsJSON       *string   `json:"detailsJson"`
	ReceivedTimestamp time.Time `json:"receivedTimestamp"`
}

type pageResponse struct {
	Content       []entryResponse `json:"content"`
	TotalElements int64           `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
	Number        int             `json:"number"`
	Size          int             `json:"size"`
}

func toEntryResponse(e models.JournalEntry) entryResponse {
	return entryResponse{
		ID:                e.ID,
		EventType:         e.EventType,
		UserID:            e.UserID,
		Username:          e.Username,
		EventTimestamp:    e.EventTimestamp,
		DetailsJSON:       e.DetailsJSON,
		ReceivedTimestamp: e.ReceivedTimestamp,
	}
}

func toPageResponse(p models.Page) pageResponse {
	content := make([]entryResponse, 0, len(p.Entries))
	for _, e := range p.Entries {
		content = append(content, toEntryResponse(e))
	}
	return pageResponse{
		Content:       content,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Number:        p.Number,
		Size:          p.Size,
	}
}

// pageParams parses ?page= and ?size=; the service clamps out-of-range values.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return page, size
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	result, err := h.journal.GetPage(r.Context(), page, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list journal entries",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, toPageResponse(result))
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entry id"))
		return
	}

	entry, err := h.journal.GetByID(r.Context(), id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(r.Context(), "failed to get journal entry",
				"entry_id", id,
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, toEntryResponse(*entry))
}

func (h *Handler) handleListEventsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	page, size := pageParams(r)
	result, err := h.journal.GetPageByUser(r.Context(), userID, page, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list journal entries by user",
			"user_id", userID,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, toPageResponse(result))
}

func (h *Handler) handleListEventsByType(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	result, err := h.journal.GetPageByEventType(r.Context(), chi.URLParam(r, "eventType"), page, size)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, toPageResponse(result))
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chronicle/internal/platform/middleware"
	"chronicle/internal/transport/http/shared"
	sharedjson "chronicle/internal/transport/http/shared/json"
	"chronicle/internal/user/models"
	"chronicle/internal/user/service"
	dErrors "chronicle/pkg/domain-errors"
)

// Handler serves registration, login, and admin user management.
type Handler struct {
	logger *slog.Logger
	users  *service.Service
	codec  middleware.TokenCodec
}

// New creates the user API handler.
func New(users *service.Service, codec middleware.TokenCodec, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		users:  users,
		codec:  codec,
	}
}

// Register mounts the auth and user routes. Registration and login are open;
// everything under /api/users requires an admin token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Recovery(h.logger))
		api.Use(middleware.RequestID)
		api.Use(middleware.Logger(h.logger))
		api.Use(middleware.Timeout(30 * time.Second))

		api.Post("/auth/register", h.handleRegister)
		api.Post("/auth/login", h.handleLogin)

		api.Route("/users", func(admin chi.Router) {
			admin.Use(middleware.Authenticate(h.codec, h.logger))
			admin.Use(middleware.RequireAuthority(models.RoleAdmin, h.logger))

			admin.Get("/", h.handleListUsers)
			admin.Get("/{id}", h.handleGetUser)
			admin.Put("/{id}", h.handleUpdateUser)
			admin.Delete("/{id}", h.handleDeleteUser)
			admin.Post("/{id}/roles/{role}", h.handleAssignRole)
			admin.Delete("/{id}/roles/{role}", h.handleRemoveRole)
		})
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse mirrors the conventional bearer token grant shape.
type loginResponse struct {
	Token    string   `json:"token"`
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// userResponse is the wire shape of a user; the password hash never leaves
// the service layer.
type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type userPageResponse struct {
	Content       []userResponse `json:"content"`
	TotalElements int64          `json:"totalElements"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid user id")
	}
	return id, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	signed, user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusOK, loginResponse{
		Token:    signed,
		Type:     "Bearer",
		Username: user.Username,
		Roles:    user.Roles,
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}

	users, total, err := h.users.List(r.Context(), page*size, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list users",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	content := make([]userResponse, 0, len(users))
	for i := range users {
		content = append(content, toUserResponse(&users[i]))
	}
	sharedjson.WriteJSON(w, http.StatusOK, userPageResponse{
		Content:       content,
		TotalElements: total,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req updateUserRequest
	if err := decodeBody(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), id, req.Username, req.Email)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.AssignRole(r.Context(), id, chi.URLParam(r, "role"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.RemoveRole(r.Context(), id, chi.URLParam(r, "role"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sharedjson.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

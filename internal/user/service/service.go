// Package service implements account management. Every successful mutation
// emits a user event after the database write commits; emission is
// best-effort and never fails the request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chronicle/internal/event"
	"chronicle/internal/user/models"
	"chronicle/internal/user/store"
	dErrors "chronicle/pkg/domain-errors"
	"chronicle/pkg/platform/sentinel"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
)

// EventPublisher emits user events to the durable log.
type EventPublisher interface {
	Publish(ctx context.Context, e *event.UserEvent)
}

// TokenMinter issues signed bearer tokens.
type TokenMinter interface {
	Mint(subject string, roles []string) (string, error)
}

// Service manages user accounts.
type Service struct {
	store     store.Store
	publisher EventPublisher
	tokens    TokenMinter
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New creates the account service.
func New(s store.Store, publisher EventPublisher, tokens TokenMinter, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:     s,
		publisher: publisher,
		tokens:    tokens,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	return nil
}

// Register creates an account with the default role and emits USER_CREATED.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	now := s.clock().UTC()
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{models.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := s.store.Create(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}
	user.ID = id

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"username", user.Username,
	)
	s.emit(ctx, event.TypeUserCreated, user, map[string]any{"email": user.Email})
	return user, nil
}

// Login verifies credentials and mints a bearer token carrying the user's
// roles. Unknown usernames and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	signed, err := s.tokens.Mint(user.Username, user.Roles)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint token")
	}
	return signed, user, nil
}

// GetByID returns a single user.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get user")
	}
	return user, nil
}

// List returns one page of users plus the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	users, total, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, total, nil
}

// Update changes a user's username and/or email. USER_UPDATED is emitted only
// when a field actually changed.
func (s *Service) Update(ctx context.Context, id int64, username, email *string) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if username != nil {
		name := strings.TrimSpace(*username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		if name != user.Username {
			changes["username"] = name
			user.Username = name
		}
	}
	if email != nil {
		addr := strings.TrimSpace(*email)
		if err := validateEmail(addr); err != nil {
			return nil, err
		}
		if addr != user.Email {
			changes["email"] = addr
			user.Email = addr
		}
	}

	if len(changes) == 0 {
		return user, nil
	}

	user.UpdatedAt = s.clock().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}

	s.emit(ctx, event.TypeUserUpdated, user, changes)
	return user, nil
}

// Delete removes the account and emits USER_DELETED.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete user")
	}

	s.logger.InfoContext(ctx, "user deleted",
		"user_id", id,
		"username", user.Username,
	)
	s.emit(ctx, event.TypeUserDeleted, user, nil)
	return nil
}

// AssignRole grants a role. Granting a role the user already holds is a
// no-op and emits nothing.
func (s *Service) AssignRole(ctx context.Context, id int64, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.HasRole(role) {
		return user, nil
	}

	user.Roles = append(user.Roles, role)
	user.UpdatedAt = s.clock().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "assign role")
	}

	s.emit(ctx, event.TypeRoleAssigned, user, map[string]any{"role": role})
	return user, nil
}

// RemoveRole revokes a role. Revoking a role the user does not hold is a
// no-op and emits nothing.
func (s *Service) RemoveRole(ctx context.Context, id int64, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.HasRole(role) {
		return user, nil
	}

	kept := make([]string, 0, len(user.Roles)-1)
	for _, r := range user.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	user.Roles = kept
	user.UpdatedAt = s.clock().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "remove role")
	}

	s.emit(ctx, event.TypeRoleRemoved, user, map[string]any{"role": role})
	return user, nil
}

func (s *Service) emit(ctx context.Context, eventType event.Type, user *models.User, details map[string]any) {
	id := user.ID
	username := user.Username
	s.publisher.Publish(ctx, &event.UserEvent{
		EventType: eventType,
		UserID:    &id,
		Username:  &username,
		Timestamp: s.clock().UTC(),
		Details:   details,
	})
}

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-user-identity/app/observability/metrics"
	"github.com/FACorreiaa/go-user-identity/internal/api/credential"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

// MaxUsernameLength bounds usernames, in characters.
const MaxUsernameLength = 255

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for account management.
type UserService interface {
	CreateUser(ctx context.Context, username, password string) (*types.UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	GetUser(ctx context.Context, id uuid.UUID) (*types.UserResponse, error)
	ListUsers(ctx context.Context) ([]types.UserResponse, error)
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*types.UserResponse, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	codec  credential.PasswordCodec
	now    func() time.Time
}

// NewUserService creates a new user service instance.
func NewUserService(repo UserRepo, codec credential.PasswordCodec, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		codec:  codec,
		now:    time.Now,
	}
}

// validateText checks that value is non-blank and at most maxLen characters,
// stopping at the first failure.
func validateText(field, value string, maxLen int) error {
	err := validation.Validate(strings.TrimSpace(value),
		validation.Required.Error(field+" is required"))
	if err == nil {
		err = validation.Validate(value,
			validation.RuneLength(1, maxLen).Error(fmt.Sprintf("%s must be at most %d characters", field, maxLen)))
	}
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidArgument, err.Error())
	}
	return nil
}

func ValidateUsername(username string) error {
	return validateText("username", username, MaxUsernameLength)
}

func failSpan(span trace.Span, err error, msg string) {
	if !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrInvalidArgument) && !errors.Is(err, types.ErrConflict) {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, msg)
}

// CreateUser validates the credentials, hashes the password and stores a new account.
func (s *UserServiceImpl) CreateUser(ctx context.Context, username, password string) (*types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "CreateUser")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateUser"))
	l.DebugContext(ctx, "Creating user", slog.String("username", username))

	if err := ValidateUsername(username); err != nil {
		failSpan(span, err, "Invalid username")
		return nil, err
	}
	if err := validateText("password", password, credential.MaxPasswordLength); err != nil {
		failSpan(span, err, "Invalid password")
		return nil, err
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		l.ErrorContext(ctx, "Failed to check username", slog.Any("error", err))
		failSpan(span, err, "Username check failed")
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if exists {
		l.WarnContext(ctx, "Username already taken", slog.String("username", username))
		err = fmt.Errorf("username %q is taken: %w", username, types.ErrConflict)
		failSpan(span, err, "Duplicate username")
		return nil, err
	}

	hash, err := s.codec.Hash(ctx, password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		failSpan(span, err, "Hashing failed")
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now().UTC()
	u := &types.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		l.WarnContext(ctx, "Failed to insert user", slog.Any("error", err))
		failSpan(span, err, "Insert failed")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	metrics.Get().UsersCreatedTotal.Add(ctx, 1)
	span.SetAttributes(attribute.String("user.id", u.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	l.InfoContext(ctx, "User created", slog.String("userID", u.ID.String()))

	resp := u.ToResponse()
	return &resp, nil
}

// DeleteUser removes the account with the given id.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "DeleteUser", trace.WithAttributes(
		attribute.String("user.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteUser"), slog.String("userID", id.String()))

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		failSpan(span, err, "Lookup failed")
		return fmt.Errorf("error fetching user: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		failSpan(span, err, "Delete failed")
		return fmt.Errorf("error deleting user: %w", err)
	}

	l.InfoContext(ctx, "User deleted")
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

// GetUser returns the public projection of one account.
func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetUser", trace.WithAttributes(
		attribute.String("user.id", id.String()),
	))
	defer span.End()

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		failSpan(span, err, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	resp := u.ToResponse()
	return &resp, nil
}

// ListUsers returns every account in creation order. The result is never nil.
func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()

	l := s.logger.With(slog.String("method", "ListUsers"))

	users, err := s.repo.ListAll(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		failSpan(span, err, "List failed")
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	out := make([]types.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}

	l.DebugContext(ctx, "Users listed", slog.Int("count", len(out)))
	span.SetAttributes(attribute.Int("users.count", len(out)))
	span.SetStatus(codes.Ok, "Users listed")
	return out, nil
}

// UpdateUsername renames an account. The new name follows the same rules as at
// creation and must not belong to another user.
func (s *UserServiceImpl) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateUsername", trace.WithAttributes(
		attribute.String("user.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateUsername"), slog.String("userID", id.String()))

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		failSpan(span, err, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if err := ValidateUsername(username); err != nil {
		failSpan(span, err, "Invalid username")
		return nil, err
	}

	if username != u.Username {
		other, err := s.repo.FindByUsername(ctx, username)
		switch {
		case err == nil && other.ID != u.ID:
			err = fmt.Errorf("username %q is taken: %w", username, types.ErrConflict)
			failSpan(span, err, "Duplicate username")
			return nil, err
		case err != nil && !errors.Is(err, types.ErrNotFound):
			l.ErrorContext(ctx, "Failed to check username", slog.Any("error", err))
			failSpan(span, err, "Username check failed")
			return nil, fmt.Errorf("error checking username: %w", err)
		}
	}

	u.Username = username
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		l.WarnContext(ctx, "Failed to update username", slog.Any("error", err))
		failSpan(span, err, "Update failed")
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	l.InfoContext(ctx, "Username updated")
	span.SetStatus(codes.Ok, "Username updated")
	resp := u.ToResponse()
	return &resp, nil
}

// UpdatePassword re-hashes and stores a new password for the account.
func (s *UserServiceImpl) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdatePassword", trace.WithAttributes(
		attribute.String("user.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdatePassword"), slog.String("userID", id.String()))

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		failSpan(span, err, "Lookup failed")
		return fmt.Errorf("error fetching user: %w", err)
	}
	if err := validateText("password", password, credential.MaxPasswordLength); err != nil {
		failSpan(span, err, "Invalid password")
		return err
	}

	hash, err := s.codec.Hash(ctx, password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		failSpan(span, err, "Hashing failed")
		return fmt.Errorf("error hashing password: %w", err)
	}

	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		l.ErrorContext(ctx, "Failed to store password", slog.Any("error", err))
		failSpan(span, err, "Update failed")
		return fmt.Errorf("error updating password: %w", err)
	}

	l.InfoContext(ctx, "Password updated")
	span.SetStatus(codes.Ok, "Password updated")
	return nil
}

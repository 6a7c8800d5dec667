package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-user-identity/app/observability/metrics"
	"github.com/FACorreiaa/go-user-identity/internal/api/credential"
	"github.com/FACorreiaa/go-user-identity/internal/api/user"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

const refreshTokenBytes = 32

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	// Login checks the credentials and issues a fresh token pair. The refresh
	// token replaces whatever the user had before.
	Login(ctx context.Context, username, password string) (*types.TokenPair, error)
}

type AuthServiceImpl struct {
	logger  *slog.Logger
	repo    user.UserRepo
	codec   credential.PasswordCodec
	signing SigningConfig
	now     func() time.Time
}

func NewAuthService(repo user.UserRepo, codec credential.PasswordCodec, signing SigningConfig, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:  logger,
		repo:    repo,
		codec:   codec,
		signing: signing,
		now:     time.Now,
	}
}

func recordLogin(ctx context.Context, outcome string) {
	metrics.Get().LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Login implements AuthService.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*types.TokenPair, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			recordLogin(ctx, "unknown_user")
			span.SetStatus(codes.Error, "Unknown user")
			return nil, fmt.Errorf("login for %q: %w", username, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		recordLogin(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID.String()))

	if !s.codec.Verify(ctx, password, u.PasswordHash) {
		l.WarnContext(ctx, "Invalid credentials", slog.String("userID", u.ID.String()))
		recordLogin(ctx, "invalid_credentials")
		span.SetStatus(codes.Error, "Invalid credentials")
		return nil, types.ErrUnauthenticated
	}

	if err := s.signing.Validate(); err != nil {
		l.ErrorContext(ctx, "Token signing is misconfigured", slog.Any("error", err))
		recordLogin(ctx, "misconfigured")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Signing config invalid")
		return nil, err
	}

	access, err := s.issueAccessToken(u.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign access token", slog.Any("error", err))
		recordLogin(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Signing failed")
		return nil, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		recordLogin(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Refresh token generation failed")
		return nil, err
	}

	u.RefreshToken = &refresh
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		l.ErrorContext(ctx, "Failed to store refresh token", slog.Any("error", err))
		recordLogin(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Refresh token store failed")
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	recordLogin(ctx, "success")
	l.InfoContext(ctx, "User logged in", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "Logged in")
	return &types.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.signing.Issuer,
			Audience:  jwt.ClaimStrings{s.signing.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.signing.ExpiresInSeconds) * time.Second)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signing.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

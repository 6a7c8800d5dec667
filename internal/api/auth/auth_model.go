package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-user-identity/config"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

// MinSigningKeyBytes is the HMAC-SHA-256 key size.
const MinSigningKeyBytes = 32

// SigningConfig is the immutable setup for issuing access tokens.
type SigningConfig struct {
	Key              []byte
	Issuer           string
	Audience         string
	ExpiresInSeconds int
}

// NewSigningConfig copies the JWT section of the application config.
func NewSigningConfig(cfg config.JWTConfig) SigningConfig {
	return SigningConfig{
		Key:              []byte(cfg.SecretKey),
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		ExpiresInSeconds: cfg.ExpiresInSeconds,
	}
}

// Validate reports the first missing or unusable setting as types.ErrConfiguration.
func (c SigningConfig) Validate() error {
	switch {
	case strings.TrimSpace(string(c.Key)) == "":
		return fmt.Errorf("%w: jwt signing key is not set", types.ErrConfiguration)
	case len(c.Key) < MinSigningKeyBytes:
		return fmt.Errorf("%w: jwt signing key must be at least %d bytes", types.ErrConfiguration, MinSigningKeyBytes)
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: jwt issuer is not set", types.ErrConfiguration)
	case strings.TrimSpace(c.Audience) == "":
		return fmt.Errorf("%w: jwt audience is not set", types.ErrConfiguration)
	case c.ExpiresInSeconds <= 0:
		return fmt.Errorf("%w: jwt expiry must be positive", types.ErrConfiguration)
	}
	return nil
}

// Claims carried by an access token. Subject and UserID both hold the user id.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

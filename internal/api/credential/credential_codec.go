package credential

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/FACorreiaa/go-user-identity/app/observability/metrics"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

// MaxPasswordLength bounds the plaintext accepted for hashing, in characters.
const MaxPasswordLength = 512

var _ PasswordCodec = (*BcryptCodec)(nil)

// PasswordCodec hashes and verifies passwords.
type PasswordCodec interface {
	// Hash returns a salted one-way hash of plaintext. Blank or oversized input
	// yields types.ErrInvalidArgument.
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. It never fails: a malformed
	// hash is simply a mismatch.
	Verify(ctx context.Context, plaintext, hash string) bool
}

// BcryptCodec is a PasswordCodec over bcrypt with a fixed cost.
//
// bcrypt only consumes the first 72 bytes of its input, so the plaintext is
// reduced to a base64 SHA-384 digest (64 bytes) first. Every character of a
// password up to MaxPasswordLength therefore contributes to the hash.
type BcryptCodec struct {
	cost   int
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewBcryptCodec builds a codec. maxConcurrent caps how many hash or verify
// computations run at once across the process. Values below one mean one.
func NewBcryptCodec(cost int, maxConcurrent int64, logger *slog.Logger) (*BcryptCodec, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BcryptCodec{
		cost:   cost,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger,
	}, nil
}

// Hash implements PasswordCodec.
func (c *BcryptCodec) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ValidatePassword(plaintext); err != nil {
		return "", err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	h, err := bcrypt.GenerateFromPassword(prehash(plaintext), c.cost)
	record(ctx, "hash", start)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Verify implements PasswordCodec.
func (c *BcryptCodec) Verify(ctx context.Context, plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.logger.WarnContext(ctx, "Password verification abandoned", slog.Any("error", err))
		return false
	}
	defer c.sem.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(plaintext))
	record(ctx, "verify", start)
	return err == nil
}

// ValidatePassword applies the plaintext rules shared by account creation and
// password updates.
func ValidatePassword(plaintext string) error {
	if strings.TrimSpace(plaintext) == "" {
		return fmt.Errorf("%w: password is required", types.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(plaintext) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d characters", types.ErrInvalidArgument, MaxPasswordLength)
	}
	return nil
}

func prehash(plaintext string) []byte {
	sum := sha512.Sum384([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func record(ctx context.Context, op string, start time.Time) {
	metrics.Get().PasswordHashDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", op)))
}

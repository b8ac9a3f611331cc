package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
)

// MaxAttempts bounds the retry-on-collision protocol. With ~41 bits of code
// entropy a collision is negligible per attempt; the cap exists to fail fast
// instead of looping if the random source degenerates or the table grows
// enormously.
const MaxAttempts = 10

// ClaimFunc attempts to bind a candidate code to a record. It must return a
// Conflict-kind error when the code is already taken, which the issuer
// treats as "collision, retry". This covers both a read-then-check race and
// a uniqueness-constraint violation on write.
type ClaimFunc func(ctx context.Context, code string) error

// Issuer allocates unique access codes with bounded retry.
type Issuer struct {
	logger *zap.Logger
}

// NewIssuer creates an Issuer.
func NewIssuer(logger *zap.Logger) *Issuer {
	return &Issuer{logger: logger}
}

// Issue generates candidate codes and hands each to claim until one sticks.
// After MaxAttempts collisions it surfaces a terminal Conflict rather than
// looping indefinitely.
func (i *Issuer) Issue(ctx context.Context, claim ClaimFunc) (string, error) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		code := CreateAccessCode()
		err := claim(ctx, code)
		if err == nil {
			return code, nil
		}
		if !apperr.IsKind(err, apperr.KindConflict) {
			return "", err
		}
		i.logger.Warn("Access code collision, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", MaxAttempts))
	}
	return "", apperr.Conflict("request", "failed to allocate a unique access code")
}

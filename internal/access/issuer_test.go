package access

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
)

func TestIssuer_Issue_FirstAttemptSucceeds(t *testing.T) {
	issuer := NewIssuer(zap.NewNop())

	attempts := 0
	code, err := issuer.Issue(context.Background(), func(ctx context.Context, code string) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(code) != CodeLength {
		t.Errorf("Issue() code length = %d, want %d", len(code), CodeLength)
	}
	if attempts != 1 {
		t.Errorf("Issue() attempts = %d, want 1", attempts)
	}
}

func TestIssuer_Issue_RetriesOnCollision(t *testing.T) {
	issuer := NewIssuer(zap.NewNop())

	const taken = 4
	attempts := 0
	code, err := issuer.Issue(context.Background(), func(ctx context.Context, code string) error {
		attempts++
		if attempts <= taken {
			return apperr.Conflict("request", "access code already in use")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if code == "" {
		t.Error("Issue() returned empty code")
	}
	if attempts != taken+1 {
		t.Errorf("Issue() attempts = %d, want %d", attempts, taken+1)
	}
}

func TestIssuer_Issue_ExhaustsAfterMaxAttempts(t *testing.T) {
	issuer := NewIssuer(zap.NewNop())

	attempts := 0
	_, err := issuer.Issue(context.Background(), func(ctx context.Context, code string) error {
		attempts++
		return apperr.Conflict("request", "access code already in use")
	})
	if err == nil {
		t.Fatal("Issue() expected exhaustion error")
	}
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("Issue() error kind = %v, want Conflict", apperr.KindOf(err))
	}
	if attempts != MaxAttempts {
		t.Errorf("Issue() attempts = %d, want %d", attempts, MaxAttempts)
	}
}

func TestIssuer_Issue_PropagatesStoreErrors(t *testing.T) {
	issuer := NewIssuer(zap.NewNop())

	storeErr := errors.New("database unreachable")
	attempts := 0
	_, err := issuer.Issue(context.Background(), func(ctx context.Context, code string) error {
		attempts++
		return storeErr
	})
	if !errors.Is(err, storeErr) {
		t.Errorf("Issue() error = %v, want %v", err, storeErr)
	}
	if attempts != 1 {
		t.Errorf("Issue() attempts = %d, want 1 (no retry on non-conflict errors)", attempts)
	}
}

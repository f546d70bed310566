package sessionauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidateJWTOnly(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)
	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	res, err := iss.Validate(context.Background(), creds.AccessToken, ModeJWTOnly)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if res.UserID != creds.User.UserID || res.Role != creds.User.Role {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.SessionID == "" {
		t.Fatal("expected session id in result")
	}
}

func TestValidateGarbage(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := iss.ValidateAccess(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestValidateStrictRequiresLiveSession(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)
	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	if _, err := iss.Validate(context.Background(), creds.AccessToken, ModeStrict); err != nil {
		t.Fatalf("strict validation of live session failed: %v", err)
	}

	if err := iss.Logout(context.Background(), creds.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	// JWT-only still accepts the unexpired token; strict does not.
	if _, err := iss.Validate(context.Background(), creds.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("jwt-only should accept until expiry: %v", err)
	}
	if _, err := iss.Validate(context.Background(), creds.AccessToken, ModeStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = time.Millisecond
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, cfg, up)
	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	time.Sleep(10 * time.Millisecond)

	if _, err := iss.ValidateAccess(context.Background(), creds.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)
	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	if _, err := iss.Validate(context.Background(), creds.AccessToken, ValidationMode(99)); !errors.Is(err, ErrInvalidValidationMode) {
		t.Fatalf("expected ErrInvalidValidationMode, got %v", err)
	}
}

func TestValidateJWTOnlyDoesNotRequireRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	up := newMemoryUserProvider()

	iss, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(up).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(iss.Close)

	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	// Bring Redis down to prove JWT-only validation remains stateless.
	mr.Close()

	if _, err := iss.Validate(context.Background(), creds.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("expected jwt-only validation without redis, got %v", err)
	}
	if _, err := iss.Validate(context.Background(), creds.AccessToken, ModeStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("strict validation must fail closed without redis, got %v", err)
	}
}

func TestMe(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)
	creds := registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	user, err := iss.Me(context.Background(), creds.AccessToken)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", user)
	}

	if _, err := iss.Me(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

package sessionauth

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterIssuesTokens(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)

	creds, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		t.Fatal("expected a full token pair on registration")
	}
	if creds.User.Role != "user" {
		t.Fatalf("expected default role, got %s", creds.User.Role)
	}

	stored := up.users[creds.User.UserID]
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-password-123" {
		t.Fatal("expected stored password to be hashed")
	}
	ok, err := iss.passwordHash.Verify("correct-password-123", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)
	registerTestUser(t, iss, "alice@example.com", "correct-password-123")

	_, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "another-password-456",
	})
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)

	_, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterInvalidEmail(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)

	for _, email := range []string{"", "   ", "no-at-sign"} {
		_, err := iss.Register(context.Background(), RegisterRequest{
			Email:    email,
			Password: "correct-password-123",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("email %q: expected ErrInvalidCredentials, got %v", email, err)
		}
	}
}

func TestRegisterExplicitRole(t *testing.T) {
	up := newMemoryUserProvider()
	iss := newTestIssuer(t, testConfig(), up)

	creds, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "admin@example.com",
		Password: "correct-password-123",
		Role:     "admin",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if creds.User.Role != "admin" {
		t.Fatalf("expected role admin, got %s", creds.User.Role)
	}
}

package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg), mr
}

func TestLoginLimiterBlocksAfterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.IncrementLogin(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i+1, err)
		}
	}

	if err := l.IncrementLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected CheckLogin to report ErrRateLimited, got %v", err)
	}
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "bob@example.com", "")
	if err := l.IncrementLogin(ctx, "bob@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckLogin(ctx, "bob@example.com", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestResetLoginClearsCounters(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "carol@example.com", "10.1.2.3")
	if err := l.ResetLogin(ctx, "carol@example.com", "10.1.2.3"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	attempts, err := l.GetLoginAttempts(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("get attempts failed: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", attempts)
	}
}

func TestRefreshThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := l.CheckRefresh(ctx, "sess-1"); err != nil {
		t.Fatalf("first refresh limited: %v", err)
	}
	if err := l.CheckRefresh(ctx, "sess-1"); err != nil {
		t.Fatalf("second refresh limited: %v", err)
	}
	if err := l.CheckRefresh(ctx, "sess-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	for i := 0; i < 50; i++ {
		if err := l.CheckRefresh(context.Background(), "sess-2"); err != nil {
			t.Fatalf("disabled throttle returned error: %v", err)
		}
	}
}

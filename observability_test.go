package sessionauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newObservedIssuer(t *testing.T, up UserProvider) (*Issuer, *ChannelSink) {
	t.Helper()

	_, rdb := newTestRedis(t)
	sink := NewChannelSink(64)

	iss, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(up).
		WithAuditSink(sink).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(iss.Close)

	return iss, sink
}

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

func TestAuditEventsForLifecycle(t *testing.T) {
	up := newMemoryUserProvider()
	iss, sink := newObservedIssuer(t, up)

	creds, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	event := waitForEvent(t, sink, "register_success")
	if !event.Success || event.UserID != creds.User.UserID {
		t.Fatalf("unexpected register event: %+v", event)
	}

	if _, err := iss.Refresh(context.Background(), creds.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	waitForEvent(t, sink, "refresh_success")

	// Replay the consumed token; the reuse must always be audited.
	if _, err := iss.Refresh(context.Background(), creds.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	event = waitForEvent(t, sink, "refresh_reuse_detected")
	if event.Success || event.Error != string(auditErrRefreshReuse) {
		t.Fatalf("unexpected reuse event: %+v", event)
	}
}

func TestAuditClientIPCaptured(t *testing.T) {
	up := newMemoryUserProvider()
	iss, sink := newObservedIssuer(t, up)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := iss.Login(ctx, "nobody@example.com", "whatever-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	event := waitForEvent(t, sink, "login_failure")
	if event.IP != "203.0.113.9" {
		t.Fatalf("expected client IP in audit event, got %q", event.IP)
	}
}

func TestMetricsCounters(t *testing.T) {
	up := newMemoryUserProvider()
	iss, _ := newObservedIssuer(t, up)

	creds, err := iss.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := iss.Login(context.Background(), "alice@example.com", "wrong-password-999"); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := iss.Refresh(context.Background(), creds.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := iss.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("expected 1 register success, got %d", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("expected 1 refresh success, got %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected 1 session created, got %d", snap.Counters[MetricSessionCreated])
	}
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().WithConfig(testConfig()).WithUserProvider(newMemoryUserProvider()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}

	builder := New().WithConfig(testConfig()).WithRedis(rdb).WithUserProvider(newMemoryUserProvider())
	if _, err := builder.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

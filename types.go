package sessionauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/quantfolio/sessionauth/internal/audit"
	internalmetrics "github.com/quantfolio/sessionauth/internal/metrics"
)

// UserProvider is the interface callers implement to integrate sessionauth
// with their user database. CreateUser must return an error matching
// [ErrProviderDuplicateEmail] (via errors.Is) when the email already exists.
type UserProvider interface {
	GetUserByEmail(email string) (UserRecord, error)
	GetUserByID(userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(userID string, newHash string) error
}

// UserRecord is the account record returned by [UserProvider].
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Role         string
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Role         string
}

// UserInfo is the public projection of a user carried in [Credentials];
// it never includes the password hash.
type UserInfo struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Credentials is a freshly minted token pair. ExpiresIn is the access-token
// lifetime at mint time; the refresh token's lifetime is governed by the
// server-side session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         UserInfo
}

// RegisterRequest is the input for [Issuer.Register].
type RegisterRequest struct {
	Email      string
	Password   string
	Role       string
	RememberMe bool
}

// AuthResult is returned by [Issuer.Validate] for an accepted access token.
type AuthResult struct {
	UserID    string
	Role      string
	SessionID string
}

// AuditEvent is a structured audit record emitted by the Issuer.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the Issuer's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited     = internalmetrics.MetricLoginRateLimited
	MetricRegisterSuccess      = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate    = internalmetrics.MetricRegisterDuplicate
	MetricRegisterFailure      = internalmetrics.MetricRegisterFailure
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshRateLimited   = internalmetrics.MetricRefreshRateLimited
	MetricLogout               = internalmetrics.MetricLogout
	MetricLogoutAll            = internalmetrics.MetricLogoutAll
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricSessionInvalidated   = internalmetrics.MetricSessionInvalidated
	MetricRateLimitHit         = internalmetrics.MetricRateLimitHit
	MetricValidateLatency      = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

package sessionauth

import (
	"errors"
	"time"

	"github.com/quantfolio/sessionauth/token"
)

// ValidationMode selects how Validate treats server-side session state.
type ValidationMode uint8

const (
	// ModeInherit makes a per-call mode fall back to Config.ValidationMode.
	ModeInherit ValidationMode = iota
	// ModeJWTOnly validates signature and expiry only. No Redis round trip;
	// revocation takes effect at the next refresh boundary.
	ModeJWTOnly
	// ModeStrict additionally requires the originating session to be alive.
	// Redis outages fail closed.
	ModeStrict
)

// JWTConfig controls the access-token signer/validator.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
}

// SessionConfig controls the Redis-backed refresh session store.
type SessionConfig struct {
	RedisPrefix        string
	AbsoluteLifetime   time.Duration
	RememberMeLifetime time.Duration
	SlidingExpiration  bool
	JitterEnabled      bool
	JitterRange        time.Duration
	MaxSessionsPerUser int
	ReplayTracking     bool
}

// PasswordConfig controls argon2id parameters and password policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

// SecurityConfig controls login and refresh rate limiting.
type SecurityConfig struct {
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the complete Issuer configuration. Values are plain Go data;
// loading them from files or the environment is the host's concern.
type Config struct {
	ValidationMode ValidationMode
	DefaultRole    string

	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

func defaultConfig() Config {
	return Config{
		ValidationMode: ModeJWTOnly,
		DefaultRole:    "user",
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: string(token.MethodHS256),
			Issuer:        "sessionauth",
		},
		Session: SessionConfig{
			RedisPrefix:        "sa",
			AbsoluteLifetime:   24 * time.Hour,
			RememberMeLifetime: 30 * 24 * time.Hour,
			ReplayTracking:     true,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           2,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:     true,
			MaxLoginAttempts:        10,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      30,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// DefaultConfig returns the baseline configuration. Callers must still set
// JWT.PrivateKey (and PublicKey for ed25519) before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internally consistent values.
// Signing-key material is validated by token.NewManager during Build.
func (c *Config) Validate() error {
	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("ValidationMode must be ModeJWTOnly or ModeStrict")
	}
	if c.DefaultRole == "" {
		return errors.New("DefaultRole must not be empty")
	}

	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT.RefreshTTL must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT.AccessTTL must be shorter than JWT.RefreshTTL")
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}
	if c.Session.AbsoluteLifetime <= 0 {
		return errors.New("Session.AbsoluteLifetime must be positive")
	}
	if c.Session.RememberMeLifetime < c.Session.AbsoluteLifetime {
		return errors.New("Session.RememberMeLifetime must be >= Session.AbsoluteLifetime")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("Session.MaxSessionsPerUser must not be negative")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session.JitterRange must be positive when jitter is enabled")
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password.MinLength must be >= 8")
	}

	if c.Security.EnableLoginThrottle || c.Security.EnableIPThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security.MaxLoginAttempts must be positive when login throttling is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security.LoginCooldownDuration must be positive when login throttling is enabled")
		}
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security.MaxRefreshAttempts must be positive when refresh throttling is enabled")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security.RefreshCooldownDuration must be positive when refresh throttling is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}

	return nil
}

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quantfolio/sessionauth"
)

// ErrNotAuthenticated is returned when an operation needs a live session and
// the coordinator does not hold one.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// AuthAPI is the issuer-facing surface the coordinator depends on.
// httpapi.Client implements it.
type AuthAPI interface {
	Register(ctx context.Context, req sessionauth.RegisterRequest) (*sessionauth.Credentials, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*sessionauth.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*sessionauth.Credentials, error)
	Logout(ctx context.Context, refreshToken string) error
}

// State describes where the coordinator is in the session lifecycle.
type State uint8

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

// Config configures a [Coordinator].
type Config struct {
	// API performs the actual auth calls. Required.
	API AuthAPI
	// Vault stores the refresh token. Defaults to an in-memory vault; pass a
	// FileVault for "remember me" persistence.
	Vault TokenVault
	// RenewalMargin is how long before access-token expiry the proactive
	// renewal fires. Defaults to 60s. A margin at or above the token
	// lifetime disables proactive renewal; refresh then happens reactively.
	RenewalMargin time.Duration
	// RefreshTimeout bounds the shared refresh call. The refresh runs on a
	// detached context so one waiter's cancellation never aborts the flight
	// for the others. Defaults to 10s.
	RefreshTimeout time.Duration
	// LogoutTimeout bounds the best-effort server revoke during Logout.
	// Defaults to 3s.
	LogoutTimeout time.Duration
}

// Coordinator owns one session on the consuming side. The access token lives
// in memory only; the refresh token lives in the vault. All methods are safe
// for concurrent use.
type Coordinator struct {
	api            AuthAPI
	vault          TokenVault
	renewalMargin  time.Duration
	refreshTimeout time.Duration
	logoutTimeout  time.Duration

	flight singleflight.Group

	mu           sync.Mutex
	state        State
	accessToken  string
	refreshToken string
	user         sessionauth.UserInfo
	timer        *time.Timer
	closed       bool
}

// NewCoordinator validates cfg and returns an unauthenticated [Coordinator].
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.API == nil {
		return nil, errors.New("client: AuthAPI required")
	}
	if cfg.Vault == nil {
		cfg.Vault = NewMemoryVault()
	}
	if cfg.RenewalMargin <= 0 {
		cfg.RenewalMargin = time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 3 * time.Second
	}

	return &Coordinator{
		api:            cfg.API,
		vault:          cfg.Vault,
		renewalMargin:  cfg.RenewalMargin,
		refreshTimeout: cfg.RefreshTimeout,
		logoutTimeout:  cfg.LogoutTimeout,
	}, nil
}

// State reports the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessToken returns the current access token, if authenticated.
func (c *Coordinator) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.accessToken != ""
}

// User returns the identity captured at login/register time.
func (c *Coordinator) User() (sessionauth.UserInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.accessToken != ""
}

// Login authenticates and adopts the resulting session.
func (c *Coordinator) Login(ctx context.Context, email, password string, rememberMe bool) error {
	c.setState(StateAuthenticating)

	creds, err := c.api.Login(ctx, email, password, rememberMe)
	if err != nil {
		c.setState(StateUnauthenticated)
		return err
	}

	c.adopt(creds)
	return nil
}

// Register creates an account and adopts its first session.
func (c *Coordinator) Register(ctx context.Context, req sessionauth.RegisterRequest) error {
	c.setState(StateAuthenticating)

	creds, err := c.api.Register(ctx, req)
	if err != nil {
		c.setState(StateUnauthenticated)
		return err
	}

	c.adopt(creds)
	return nil
}

// Resume restores a remembered session from the vault by refreshing the
// stored token. Returns ErrNotAuthenticated when the vault is empty.
func (c *Coordinator) Resume(ctx context.Context) error {
	stored, err := c.vault.Load()
	if err != nil {
		return err
	}
	if stored == "" {
		return ErrNotAuthenticated
	}

	c.mu.Lock()
	c.refreshToken = stored
	c.state = StateAuthenticating
	c.mu.Unlock()

	if _, err := c.RefreshNow(ctx); err != nil {
		return err
	}
	return nil
}

// RefreshNow forces a refresh and returns the new access token. Concurrent
// callers share one flight: exactly one issuer call happens and every waiter
// gets its result. A waiter whose ctx expires abandons the wait; the flight
// itself keeps running on a detached context.
func (c *Coordinator) RefreshNow(ctx context.Context) (string, error) {
	ch := c.flight.DoChan("refresh", func() (interface{}, error) {
		return c.doRefresh()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) doRefresh() (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	refreshToken := c.refreshToken
	if refreshToken == "" {
		c.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	creds, err := c.api.Refresh(ctx, refreshToken)
	if err != nil {
		if isAuthRejection(err) {
			// The server refused the token itself; this lineage is dead.
			c.clearLocal()
		} else {
			// Transport trouble: keep the session material, the next attempt
			// may succeed. Without an adopted access token (Resume) there is
			// no authenticated session to report yet.
			c.mu.Lock()
			if c.accessToken != "" {
				c.state = StateAuthenticated
			} else {
				c.state = StateUnauthenticated
			}
			c.mu.Unlock()
		}
		return "", err
	}

	c.adopt(creds)
	return creds.AccessToken, nil
}

// Logout tears the session down. Local state and the vault are cleared
// first; the server-side revoke is best-effort with its own timeout, so a
// dead network never blocks teardown.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	c.clearLocal()

	if refreshToken == "" {
		return nil
	}

	revokeCtx, cancel := context.WithTimeout(ctx, c.logoutTimeout)
	defer cancel()
	return c.api.Logout(revokeCtx, refreshToken)
}

// Close stops the renewal timer and drops the session without contacting the
// server.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.clearLocal()
}

func (c *Coordinator) adopt(creds *sessionauth.Credentials) {
	// Vault write happens outside the lock; worst case a crash loses the
	// remembered token and the user logs in again.
	if err := c.vault.Store(creds.RefreshToken); err != nil {
		// Session still works for this process lifetime.
		_ = err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.accessToken = creds.AccessToken
	c.refreshToken = creds.RefreshToken
	if creds.User != (sessionauth.UserInfo{}) {
		c.user = creds.User
	}
	c.state = StateAuthenticated

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed {
		return
	}

	delay := creds.ExpiresIn - c.renewalMargin
	if delay <= 0 {
		// The margin swallows the whole token lifetime; arming the timer
		// would fire an immediate refresh whose result re-arms it again.
		// Leave renewal to the reactive path instead.
		return
	}
	c.timer = time.AfterFunc(delay, c.proactiveRenew)
}

func (c *Coordinator) proactiveRenew() {
	// Failure is terminal for this session: no retry loop, no surfaced
	// error. The user sees it on their next action.
	_, _ = c.RefreshNow(context.Background())
}

func (c *Coordinator) clearLocal() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.accessToken = ""
	c.refreshToken = ""
	c.user = sessionauth.UserInfo{}
	c.state = StateUnauthenticated
	c.mu.Unlock()

	_ = c.vault.Clear()
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func isAuthRejection(err error) bool {
	return errors.Is(err, sessionauth.ErrRefreshInvalid) ||
		errors.Is(err, sessionauth.ErrRefreshReuse) ||
		errors.Is(err, sessionauth.ErrSessionNotFound) ||
		errors.Is(err, sessionauth.ErrUserNotFound) ||
		errors.Is(err, sessionauth.ErrUnauthorized)
}

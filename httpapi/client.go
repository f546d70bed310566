package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantfolio/sessionauth"
)

// Client is a typed consumer of the /auth wire contract. It satisfies the
// AuthAPI interface expected by the client package's Coordinator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL (scheme://host[:port]).
// When httpClient is nil a default with a 10s timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, req sessionauth.RegisterRequest) (*sessionauth.Credentials, error) {
	return c.postForCredentials(ctx, "/auth/register", registerRequest{
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		RememberMe: req.RememberMe,
	}, http.StatusCreated, registerError)
}

// Login authenticates and returns a token pair.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*sessionauth.Credentials, error) {
	return c.postForCredentials(ctx, "/auth/login", loginRequest{
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	}, http.StatusOK, loginError)
}

// Refresh rotates a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*sessionauth.Credentials, error) {
	return c.postForCredentials(ctx, "/auth/refresh", refreshRequest{
		RefreshToken: refreshToken,
	}, http.StatusOK, refreshError)
}

// Logout revokes a session. The endpoint is idempotent, so any 204 — even
// for an already-dead token — is success.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.post(ctx, "/auth/logout", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postForCredentials(
	ctx context.Context,
	path string,
	body interface{},
	wantStatus int,
	mapErr func(status int) error,
) (*sessionauth.Credentials, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != wantStatus {
		if err := mapErr(resp.StatusCode); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", path, err)
	}

	creds := &sessionauth.Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresInSeconds) * time.Second,
	}
	if tr.User != nil {
		creds.User = *tr.User
	}
	return creds, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

func registerError(status int) error {
	switch status {
	case http.StatusConflict:
		return sessionauth.ErrEmailInUse
	case http.StatusBadRequest:
		return sessionauth.ErrWeakPassword
	default:
		return nil
	}
}

func loginError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return sessionauth.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		return sessionauth.ErrLoginRateLimited
	default:
		return nil
	}
}

func refreshError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return sessionauth.ErrRefreshInvalid
	case http.StatusTooManyRequests:
		return sessionauth.ErrRefreshRateLimited
	default:
		return nil
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}

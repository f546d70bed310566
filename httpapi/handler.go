package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/quantfolio/sessionauth"
)

// Wire error codes. Reuse of a rotated refresh token is reported with the
// same code as any other invalid token; the distinction lives in audit only.
const (
	codeInvalidCredentials    = "InvalidCredentials"
	codeInvalidOrExpiredToken = "InvalidOrExpiredToken"
	codeEmailInUse            = "EmailInUse"
	codeWeakCredential        = "WeakCredential"
	codeBadRequest            = "BadRequest"
	codeRateLimited           = "RateLimited"
	codeInternal              = "InternalError"
)

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string                `json:"accessToken"`
	RefreshToken     string                `json:"refreshToken"`
	ExpiresInSeconds int64                 `json:"expiresInSeconds"`
	User             *sessionauth.UserInfo `json:"user,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the /auth endpoints for an Issuer.
type Handler struct {
	issuer *sessionauth.Issuer
}

// NewHandler wraps an Issuer for HTTP serving.
func NewHandler(issuer *sessionauth.Issuer) *Handler {
	return &Handler{issuer: issuer}
}

// Mount registers all auth routes on mux using method-qualified patterns.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/me", h.handleMe)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest)
		return
	}

	creds, err := h.issuer.Register(requestContext(r), sessionauth.RegisterRequest{
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		switch {
		case errors.Is(err, sessionauth.ErrEmailInUse):
			writeError(w, http.StatusConflict, codeEmailInUse)
		case errors.Is(err, sessionauth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, codeWeakCredential)
		case errors.Is(err, sessionauth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, codeBadRequest)
		default:
			writeError(w, http.StatusInternalServerError, codeInternal)
		}
		return
	}

	writeCredentials(w, http.StatusCreated, creds, true)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest)
		return
	}

	ctx := requestContext(r)
	var creds *sessionauth.Credentials
	var err error
	if req.RememberMe {
		creds, err = h.issuer.LoginRemembered(ctx, req.Email, req.Password)
	} else {
		creds, err = h.issuer.Login(ctx, req.Email, req.Password)
	}
	if err != nil {
		switch {
		case errors.Is(err, sessionauth.ErrLoginRateLimited):
			writeError(w, http.StatusTooManyRequests, codeRateLimited)
		case errors.Is(err, sessionauth.ErrInvalidCredentials),
			errors.Is(err, sessionauth.ErrSessionLimitExceeded):
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials)
		default:
			writeError(w, http.StatusInternalServerError, codeInternal)
		}
		return
	}

	writeCredentials(w, http.StatusOK, creds, true)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken)
		return
	}

	creds, err := h.issuer.Refresh(requestContext(r), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, sessionauth.ErrRefreshRateLimited):
			writeError(w, http.StatusTooManyRequests, codeRateLimited)
		case errors.Is(err, sessionauth.ErrRefreshInvalid),
			errors.Is(err, sessionauth.ErrRefreshReuse),
			errors.Is(err, sessionauth.ErrSessionNotFound),
			errors.Is(err, sessionauth.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken)
		default:
			writeError(w, http.StatusInternalServerError, codeInternal)
		}
		return
	}

	writeCredentials(w, http.StatusOK, creds, false)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		// Idempotent by contract: a malformed logout still "succeeds".
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.issuer.Logout(requestContext(r), req.RefreshToken); err != nil {
		if errors.Is(err, sessionauth.ErrRefreshInvalid) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken)
		return
	}

	user, err := h.issuer.Me(requestContext(r), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*sessionauth.UserInfo{"user": user})
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		ctx = sessionauth.WithClientIP(ctx, host)
	}
	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) <= len(bearer) || value[:len(bearer)] != bearer {
		return "", false
	}
	return value[len(bearer):], true
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeCredentials(w http.ResponseWriter, status int, creds *sessionauth.Credentials, includeUser bool) {
	resp := tokenResponse{
		AccessToken:      creds.AccessToken,
		RefreshToken:     creds.RefreshToken,
		ExpiresInSeconds: int64(creds.ExpiresIn.Seconds()),
	}
	if includeUser {
		user := creds.User
		resp.User = &user
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

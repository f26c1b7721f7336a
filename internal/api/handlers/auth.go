// Package handlers contains the HTTP handler implementations for the
// BalanceGuard API.
//
// Each handler decodes and validates its request, delegates to service-layer
// logic, and manages HTTP-specific concerns such as cookies and envelopes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"balanceguard/internal/auth"
	"balanceguard/internal/core"
	"balanceguard/internal/types"
)

// LoginRequest is the request body for POST /{surface}/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthResponse is returned after a successful login. The session token
// travels only in the Set-Cookie header, never in the body. The CSRF token
// is duplicated in the body so single-page clients can seed the header
// without reading cookies.
type AuthResponse struct {
	CSRFToken   string    `json:"csrf_token"`
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MeResponse describes the resolved actor for GET /{surface}/auth/me.
type MeResponse struct {
	Kind      string  `json:"kind"`
	AccountID *string `json:"account_id,omitempty"`
	Surface   string  `json:"surface"`
}

// Authenticator is the login surface of auth.LoginService.
type Authenticator interface {
	Login(ctx context.Context, surface types.Surface, email, password, ip, userAgent string) (*auth.IssuedSession, *types.Account, error)
}

// SessionRevoker is the logout surface of auth.SessionService.
type SessionRevoker interface {
	Revoke(ctx context.Context, rawToken, reason string) error
}

type AuthHandler struct {
	authenticator Authenticator
	revoker       SessionRevoker
	validate      *core.Validator
	production    bool
	logger        *slog.Logger
}

func NewAuthHandler(authenticator Authenticator, revoker SessionRevoker, validate *core.Validator, production bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authenticator: authenticator,
		revoker:       revoker,
		validate:      validate,
		production:    production,
		logger:        logger,
	}
}

// RegisterRoutes mounts the auth endpoints on a surface group. Login sits
// before any session exists, so it skips CSRF and the auth requirement;
// logout is deliberately reachable without a valid session so a client with
// a stale cookie can always clear it.
func (h *AuthHandler) RegisterRoutes(r chi.Router, gw *core.Gateway) {
	r.Post("/auth/login", gw.Wrap(h.Login, core.Public(), core.SkipCSRF()))
	r.Post("/auth/logout", gw.Wrap(h.Logout, core.Public()))
	r.Get("/auth/me", gw.Wrap(h.Me))
}

// Login authenticates credentials and establishes the surface session. Both
// unknown emails and wrong passwords produce the same error.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	surface := types.GetSurface(r.Context())

	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	issued, account, err := h.authenticator.Login(r.Context(), surface,
		req.Email, req.Password, types.GetClientIP(r.Context()), r.UserAgent())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, surface, issued.RawToken, issued.Session.ExpiresAt, h.production)
	auth.SetCSRFCookie(w, surface, issued.CSRFToken, issued.Session.ExpiresAt, h.production)

	core.JSON(w, r, http.StatusOK, AuthResponse{
		CSRFToken:   issued.CSRFToken,
		AccountID:   account.ID.String(),
		DisplayName: account.DisplayName,
		ExpiresAt:   issued.Session.ExpiresAt,
	})
}

// Logout revokes the presented session, if any, and clears the surface
// cookies. It succeeds whether or not a live session was presented.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	surface := types.GetSurface(r.Context())

	rawToken, _ := auth.ReadSessionCookie(r, surface, h.production)
	if err := h.revoker.Revoke(r.Context(), rawToken, "logout"); err != nil {
		h.logger.Warn("session revoke failed during logout",
			"request_id", types.GetRequestID(r.Context()),
			"surface", string(surface),
			"error", err,
		)
	}

	auth.ClearSessionCookies(w, surface, h.production)
	core.JSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me reports the actor resolved by the gateway.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := types.GetActor(r.Context())

	resp := MeResponse{
		Kind:    string(actor.Kind),
		Surface: string(types.GetSurface(r.Context())),
	}
	if actor.AccountID != nil {
		id := actor.AccountID.String()
		resp.AccountID = &id
	}
	core.JSON(w, r, http.StatusOK, resp)
}

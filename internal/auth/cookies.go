package auth

import (
	"net/http"
	"time"

	"balanceguard/internal/types"
)

// hostPrefix is the cookie name prefix that makes browsers enforce Secure,
// Path=/ and no Domain attribute. Production sessions ride under it.
const hostPrefix = "__Host-"

// SessionCookieName returns the session cookie name for a surface.
// Dev: "{surface}_session". Production: "__Host-{surface}_session".
func SessionCookieName(surface types.Surface, production bool) string {
	name := string(surface) + "_session"
	if production {
		return hostPrefix + name
	}
	return name
}

// CSRFCookieName returns the double-submit cookie name for a surface. The
// name is the same in every environment; only the Secure posture changes.
func CSRFCookieName(surface types.Surface) string {
	return "csrf_" + string(surface)
}

// devSessionPath scopes dev session cookies per surface so two surfaces
// served from one host cannot read each other's sessions.
func devSessionPath(surface types.Surface) string {
	return "/" + string(surface)
}

// sameSite picks the cross-site posture: Lax for same-site dev setups, None
// for the cross-origin production deployment (which requires Secure).
func sameSite(production bool) http.SameSite {
	if production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetSessionCookie writes the HttpOnly session cookie for a surface.
func SetSessionCookie(w http.ResponseWriter, surface types.Surface, rawToken string, expires time.Time, production bool) {
	cookie := &http.Cookie{
		Name:     SessionCookieName(surface, production),
		Value:    rawToken,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   production,
		SameSite: sameSite(production),
	}
	if !production {
		cookie.Path = devSessionPath(surface)
	}
	http.SetCookie(w, cookie)
}

// SetCSRFCookie writes the non-HttpOnly double-submit cookie. The frontend
// reads it and mirrors the value into the x-csrf-token header.
func SetCSRFCookie(w http.ResponseWriter, surface types.Surface, token string, expires time.Time, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName(surface),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: false,
		Secure:   production,
		SameSite: sameSite(production),
	})
}

// ReadSessionCookie extracts the raw session token for a surface, if present.
func ReadSessionCookie(r *http.Request, surface types.Surface, production bool) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName(surface, production))
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// ClearSessionCookies expires the session and CSRF cookies on every path a
// prior deployment may have set them. Without the legacy-path clears a stale
// dev cookie survives logout and shadows the next login ("zombie cookies").
func ClearSessionCookies(w http.ResponseWriter, surface types.Surface, production bool) {
	expire := func(name, path string) {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   production,
			SameSite: sameSite(production),
		})
	}

	sessionName := SessionCookieName(surface, production)
	if production {
		expire(sessionName, "/")
	} else {
		expire(sessionName, devSessionPath(surface))
		// Legacy deployments set the dev cookie on the root path.
		expire(sessionName, "/")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName(surface),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   production,
		SameSite: sameSite(production),
	})
}

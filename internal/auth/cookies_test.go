package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"balanceguard/internal/types"
)

func findCookies(rec *httptest.ResponseRecorder, name string) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func TestSessionCookieName(t *testing.T) {
	tests := []struct {
		surface    types.Surface
		production bool
		want       string
	}{
		{types.SurfaceClient, false, "client_session"},
		{types.SurfaceClient, true, "__Host-client_session"},
		{types.SurfaceAdmin, false, "admin_session"},
		{types.SurfaceAdmin, true, "__Host-admin_session"},
	}
	for _, tt := range tests {
		if got := SessionCookieName(tt.surface, tt.production); got != tt.want {
			t.Errorf("SessionCookieName(%s, %v) = %q, want %q", tt.surface, tt.production, got, tt.want)
		}
	}
}

func TestSetSessionCookie_Production(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Now().Add(time.Hour)

	SetSessionCookie(rec, types.SurfaceClient, "rawtoken", expires, true)

	cookies := findCookies(rec, "__Host-client_session")
	if len(cookies) != 1 {
		t.Fatalf("expected 1 session cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if !c.Secure {
		t.Error("production session cookie must be Secure")
	}
	if c.Path != "/" {
		t.Errorf("__Host- cookie path must be /, got %q", c.Path)
	}
	if c.SameSite != http.SameSiteNoneMode {
		t.Error("production session cookie must be SameSite=None")
	}
}

func TestSetSessionCookie_DevPathScoped(t *testing.T) {
	rec := httptest.NewRecorder()

	SetSessionCookie(rec, types.SurfaceAdmin, "rawtoken", time.Now().Add(time.Hour), false)

	cookies := findCookies(rec, "admin_session")
	if len(cookies) != 1 {
		t.Fatalf("expected 1 session cookie, got %d", len(cookies))
	}
	if cookies[0].Path != "/admin" {
		t.Errorf("dev session cookie path = %q, want /admin", cookies[0].Path)
	}
	if cookies[0].Secure {
		t.Error("dev session cookie must not require Secure")
	}
	if cookies[0].SameSite != http.SameSiteLaxMode {
		t.Error("dev session cookie must be SameSite=Lax")
	}
}

func TestSetCSRFCookie_NotHttpOnly(t *testing.T) {
	rec := httptest.NewRecorder()

	SetCSRFCookie(rec, types.SurfaceClient, "csrftoken", time.Now().Add(time.Hour), true)

	cookies := findCookies(rec, "csrf_client")
	if len(cookies) != 1 {
		t.Fatalf("expected 1 csrf cookie, got %d", len(cookies))
	}
	if cookies[0].HttpOnly {
		t.Error("csrf cookie must not be HttpOnly; the frontend reads it")
	}
	if cookies[0].Path != "/" {
		t.Errorf("csrf cookie path = %q, want /", cookies[0].Path)
	}
}

func TestReadSessionCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/client/me", nil)
	r.AddCookie(&http.Cookie{Name: "client_session", Value: "rawtoken"})

	got, ok := ReadSessionCookie(r, types.SurfaceClient, false)
	if !ok || got != "rawtoken" {
		t.Errorf("ReadSessionCookie = (%q, %v), want (rawtoken, true)", got, ok)
	}

	// Production name differs; the dev cookie is invisible there.
	if _, ok := ReadSessionCookie(r, types.SurfaceClient, true); ok {
		t.Error("production read must not pick up the dev cookie")
	}
}

func TestClearSessionCookies_DevClearsLegacyPath(t *testing.T) {
	rec := httptest.NewRecorder()

	ClearSessionCookies(rec, types.SurfaceClient, false)

	session := findCookies(rec, "client_session")
	if len(session) != 2 {
		t.Fatalf("expected clears on current and legacy paths, got %d cookies", len(session))
	}
	paths := map[string]bool{}
	for _, c := range session {
		paths[c.Path] = true
		if c.MaxAge != -1 {
			t.Errorf("clear cookie MaxAge = %d, want -1", c.MaxAge)
		}
	}
	if !paths["/client"] || !paths["/"] {
		t.Errorf("expected clears on /client and /, got %v", paths)
	}

	if len(findCookies(rec, "csrf_client")) != 1 {
		t.Error("csrf cookie must be cleared too")
	}
}

func TestClearSessionCookies_Production(t *testing.T) {
	rec := httptest.NewRecorder()

	ClearSessionCookies(rec, types.SurfaceAdmin, true)

	session := findCookies(rec, "__Host-admin_session")
	if len(session) != 1 {
		t.Fatalf("expected a single production clear, got %d", len(session))
	}
	if session[0].Path != "/" {
		t.Errorf("production clear path = %q, want /", session[0].Path)
	}
}

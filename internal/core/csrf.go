package core

import (
	"crypto/subtle"
	"net/http"

	"balanceguard/internal/auth"
	"balanceguard/internal/types"
)

const csrfHeaderName = "X-CSRF-Token"

// EnforceCSRF applies the double-submit check: the X-CSRF-Token header must
// match the surface CSRF cookie byte for byte.
func EnforceCSRF(r *http.Request, surface types.Surface) error {
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return types.NewAppError(types.ErrCodeCSRFRequired, "CSRF token header is required.", nil)
	}

	cookie, err := r.Cookie(auth.CSRFCookieName(surface))
	if err != nil || cookie.Value == "" {
		return types.NewAppError(types.ErrCodeCSRFInvalid, "CSRF token is invalid.", nil)
	}

	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return types.NewAppError(types.ErrCodeCSRFInvalid, "CSRF token is invalid.", nil)
	}
	return nil
}

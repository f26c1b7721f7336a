package core

import (
	"net/url"
	"strings"

	"balanceguard/internal/config"
	"balanceguard/internal/types"
)

// EnforceOrigin checks the Origin header of a state-changing request against
// the surface allowlist. An empty allowlist fails closed in production and
// passes everything in dev.
func EnforceOrigin(origin string, cfg config.SurfaceConfig, production bool) error {
	if len(cfg.AllowedOrigins) == 0 {
		if production {
			return originRejected("no_allowlist_configured")
		}
		return nil
	}
	if origin == "" {
		return originRejected("missing_origin")
	}
	if !originAllowed(origin, cfg) {
		return originRejected("origin_not_allowed")
	}
	return nil
}

func originRejected(reason string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeOriginRejected,
		"Request origin is not allowed.", nil, map[string]any{"reason": reason})
}

// originAllowed reports whether origin exactly matches an allowlist entry or
// is an https origin whose host sits under the surface preview suffix.
func originAllowed(origin string, cfg config.SurfaceConfig) bool {
	for _, allowed := range cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	if cfg.PreviewSuffix == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	// Match on a label boundary so "evilpreview.example.dev" does not pass
	// for a suffix configured as "preview.example.dev".
	suffix := cfg.PreviewSuffix
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return u.Host == cfg.PreviewSuffix || strings.HasSuffix(u.Host, suffix)
}

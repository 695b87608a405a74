package httpmw

import (
	"net/http"
	"strings"
)

// CanonicalOptions configures canonical URL redirects.
type CanonicalOptions struct {
	// SkipPrefixes lists path prefixes that are exempt from
	// canonicalization (API endpoints, health checks).
	SkipPrefixes []string

	// Host, when set, limits www-stripping to exactly "www."+Host so
	// requests with unexpected Host headers (IPs, internal names) are
	// left alone. Empty strips the www. prefix from any host.
	Host string
}

// Canonical 301-redirects requests to the canonical URL form:
// www.<host> becomes <host>, and trailing slashes are stripped (except
// for the root path). Only GET/HEAD are redirected; other methods pass
// through untouched so clients don't silently drop request bodies.
func Canonical(opts CanonicalOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range opts.SkipPrefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			host := r.Host
			path := r.URL.Path
			changed := false

			if h, ok := strings.CutPrefix(host, "www."); ok && (opts.Host == "" || h == opts.Host) {
				host = h
				changed = true
			}
			if len(path) > 1 && strings.HasSuffix(path, "/") {
				path = strings.TrimRight(path, "/")
				if path == "" {
					path = "/"
				}
				changed = true
			}

			if !changed {
				next.ServeHTTP(w, r)
				return
			}

			target := schemeFromRequest(r) + "://" + host + path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
	}
}

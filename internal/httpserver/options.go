package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cyberbrosec/cyberbro-web/internal/health"
	"github.com/cyberbrosec/cyberbro-web/internal/httpmw"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	Health       health.Probe
	Readiness    health.Probe

	// APIRoutes registers the JSON endpoints (contact form, scam stats).
	APIRoutes func(chi.Router)

	// SiteHandler serves everything no API route claimed.
	SiteHandler http.Handler

	ClientIPOpts    httpmw.ClientIPOptions
	Canonical       httpmw.CanonicalOptions
	SecurityHeaders httpmw.SecurityHeadersOptions
}

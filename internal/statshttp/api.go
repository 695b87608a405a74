// Package statshttp serves the scam-checker analytics endpoints. Reads
// degrade to zeroed stats when the store is down; writes go through the
// same origin and rate-limit gates as the contact form, with a higher
// budget.
package statshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cyberbrosec/cyberbro-web/internal/httpmw"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
	"github.com/cyberbrosec/cyberbro-web/internal/metrics"
	"github.com/cyberbrosec/cyberbro-web/internal/ratelimit"
	"github.com/cyberbrosec/cyberbro-web/internal/scenario"
	"github.com/cyberbrosec/cyberbro-web/internal/usage"
	"github.com/cyberbrosec/cyberbro-web/internal/validate"
)

const maxBodyBytes = 16 << 10

// Options carries the handler's dependencies and static config.
type Options struct {
	Logger  log.Logger
	Usage   *usage.Counters
	Limiter *ratelimit.FixedWindow
	Metrics *metrics.ServerMetrics

	AllowedOrigins []string
}

// API implements the scam-stats endpoints.
type API struct {
	opts Options
	log  log.Logger
}

// NewAPI builds the stats handler.
func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &API{opts: opts, log: opts.Logger}
}

// RegisterRoutes attaches the stats endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/scam-stats", api.HandleStats)
	r.Post("/api/scam-stats", api.HandleCheck)
}

// HandleStats serves the aggregate counters. This path never hard-fails:
// a missing or broken store yields zeroed stats with a 200.
func (api *API) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := api.opts.Usage.Snapshot(ctx)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		api.log.Warn(ctx, "failed to encode stats response", "error", err)
	}
}

// checkResponse answers a recorded scam check.
type checkResponse struct {
	Success          bool   `json:"success"`
	TotalChecks      int    `json:"totalChecks"`
	TodayChecks      int    `json:"todayChecks"`
	DetectedScenario string `json:"detectedScenario"`
}

// HandleCheck validates a quiz submission, classifies it, and bumps the
// usage counters.
func (api *API) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !validate.Origin(r.Header.Get("Origin"), r.Header.Get("Referer"), api.opts.AllowedOrigins) {
		api.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Error: "invalid request origin"})
		return
	}

	clientIP := httpmw.ClientIPFromContext(ctx)
	if api.opts.Limiter != nil {
		if res := api.opts.Limiter.Check(ctx, clientIP); res.Limited {
			retryAfter := int(api.opts.Limiter.Window().Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.writeJSON(ctx, w, http.StatusTooManyRequests, rateLimitedResponse{
				Error:      "too many checks, please try again later",
				RetryAfter: retryAfter,
			})
			return
		}
	}

	var sub scenario.Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if sub.UserRole == "" || sub.CommunicationMedium == "" || sub.PaymentMethod == "" || sub.SocialEngineering == "" {
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "all fields are required"})
		return
	}

	category := scenario.Classify(sub)
	if api.opts.Metrics != nil {
		api.opts.Metrics.IncScamCheck(category)
	}

	total, today, err := api.opts.Usage.Record(ctx, category)
	if err != nil {
		// counters are best-effort analytics, the classification still
		// gets returned
		api.log.Warn(ctx, "scam check counters not recorded", "error", err, "scenario", category)
	}

	api.writeJSON(ctx, w, http.StatusOK, checkResponse{
		Success:          true,
		TotalChecks:      total,
		TodayChecks:      today,
		DetectedScenario: category,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.log.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/cyberbrosec/cyberbro-web/internal/kvstore"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
)

// FixedWindow is a KV-backed per-client budget for a single feature
// ("contact", "scam-check"). Unlike IPLimiter it survives restarts and is
// shared across instances, at the cost of a store round trip per request.
//
// The policy is approximate fixed-window: each accepted request rewrites
// the counter with a fresh TTL, so the window restarts from the most
// recent accepted request rather than the first. Good enough for abuse
// throttling; not a precision quota.
type FixedWindow struct {
	store   kvstore.Store
	feature string
	max     int
	window  time.Duration

	// OnDenied is called with the client key on every denied request,
	// used to increment prometheus counters.
	OnDenied func(clientKey string)
}

// Result reports whether the caller is over budget and how many requests
// remain in the current window.
type Result struct {
	Limited   bool
	Remaining int
}

// NewFixedWindow builds a limiter for one feature. store may be nil:
// the limiter then allows everything and logs a warning per check
// (availability over strictness).
func NewFixedWindow(store kvstore.Store, feature string, max int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		store:   store,
		feature: feature,
		max:     max,
		window:  window,
	}
}

// Window returns the configured window length, used for Retry-After hints.
func (f *FixedWindow) Window() time.Duration { return f.window }

// Check consumes one request from clientKey's budget.
//
// Store failures fail OPEN: the request is allowed and Remaining reports
// the full budget. Once the cap is reached the counter is not advanced,
// so the window is not extended by rejected traffic.
func (f *FixedWindow) Check(ctx context.Context, clientKey string) Result {
	L := log.FromContext(ctx)

	if f.store == nil {
		L.Warn(ctx, "rate limit store not configured, allowing request", "feature", f.feature)
		return Result{Remaining: f.max}
	}

	key := f.feature + "_rate_limit:" + clientKey

	raw, ok, err := f.store.Get(ctx, key)
	if err != nil {
		L.Error(ctx, err, "rate limit read failed, allowing request", "feature", f.feature)
		return Result{Remaining: f.max}
	}
	count := 0
	if ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			count = n
		}
	}

	if count >= f.max {
		if f.OnDenied != nil {
			f.OnDenied(clientKey)
		}
		return Result{Limited: true, Remaining: 0}
	}

	if err := f.store.Put(ctx, key, strconv.Itoa(count+1), f.window); err != nil {
		L.Error(ctx, err, "rate limit write failed, allowing request", "feature", f.feature)
		return Result{Remaining: f.max}
	}

	return Result{Remaining: f.max - count - 1}
}

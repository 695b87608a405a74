package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cyberbrosec/cyberbro-web/internal/httpmw"
)

// visitor tracks one IP's token bucket and last activity.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged marks that the first-denial hook already fired for this entry;
	// resets when the entry is evicted and re-created
	logged bool
}

// IPLimiter is the site-wide in-memory flood guard: a token bucket per
// client IP with background eviction of idle entries. It runs in front of
// everything, including static pages, and exists to protect this process
// from a single noisy IP. Per-feature budgets on the API endpoints are
// enforced separately by FixedWindow.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perSecond rate.Limit
	burst     int

	// ttl is how long an idle IP stays in the map before cleanup evicts it
	ttl time.Duration

	// maxVisitors caps the tracked-IP map so an address-rotating flood
	// can't grow it without bound; new IPs are rejected at capacity until
	// eviction frees slots. 0 disables the cap.
	maxVisitors int

	// capacityNotified marks that OnCapacity already fired for the current
	// full period; resets once a new visitor fits again
	capacityNotified bool

	// OnFirstDenied fires once per visitor on their first denial, for
	// single-log-entry-per-offender logging.
	OnFirstDenied func(ip string)

	// OnDenied fires on every denial, for prometheus counters.
	OnDenied func(ip string)

	// OnCapacity fires once when the visitor map first fills up.
	OnCapacity func()
}

type Option func(*IPLimiter)

// WithRate sets the refill rate and bucket capacity.
// WithRate(10, 50) allows a burst of 50, refilling 10 tokens per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle IP stays tracked before eviction.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) {
		l.ttl = d
	}
}

func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnFirstDenied = fn
	}
}

func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnDenied = fn
	}
}

// WithMaxVisitors caps how many IPs are tracked at once. 0 disables the cap.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) {
		l.maxVisitors = n
	}
}

func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) {
		l.OnCapacity = fn
	}
}

// New creates an IPLimiter and starts its cleanup goroutine, which stops
// when ctx is cancelled at shutdown.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   10,
		burst:       30,
		ttl:         5 * time.Minute,
		maxVisitors: 100000,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow reports whether ip may proceed, creating the visitor on first sight.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			notify := !l.capacityNotified
			l.capacityNotified = true
			l.mu.Unlock()
			if notify && l.OnCapacity != nil {
				l.OnCapacity()
			}
			return false
		}
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
		l.capacityNotified = false
	}
	v.lastSeen = time.Now()
	allowed := v.limiter.Allow()

	if !allowed && !v.logged {
		v.logged = true
		// hooks may do slow work, release the lock first
		l.mu.Unlock()
		if l.OnFirstDenied != nil {
			l.OnFirstDenied(ip)
		}
		if l.OnDenied != nil {
			l.OnDenied(ip)
		}
		return false
	}

	l.mu.Unlock()

	if !allowed && l.OnDenied != nil {
		l.OnDenied(ip)
	}

	return allowed
}

// cleanup evicts visitors idle longer than the TTL, every TTL/2.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.ttl {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the per-IP limit with 429. The client IP
// comes from httpmw.ClientIP, which must run outside this middleware.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httpmw.ClientIPFromContext(r.Context())

		if !l.allow(ip) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			// no detail about limits or refill timing on purpose
			w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package ratelimit provides the two throttles the site uses.
//
// IPLimiter is a single-instance, in-memory token bucket per client IP for
// basic flood prevention across all routes. It does not protect against
// distributed attacks or anything that stays under the limit; that belongs
// to an upstream WAF or CDN.
//
// FixedWindow is a Redis-backed approximate fixed-window budget applied
// per feature on the API endpoints (contact form, scam checker), keyed by
// client IP. It fails open when the store is unavailable.
package ratelimit

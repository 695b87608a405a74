// Package httpmw provides HTTP middleware for the public-facing server.
//
// Middleware is composed in a specific order in httpserver.NewHandler:
// security headers, panic recovery, request ID, canonical URL redirects
// (www-strip, trailing slash), client IP extraction, rate limiting, OTEL
// tracing, metrics, structured logging, and chi router.
//
// Each middleware is an independent function that can be tested, reordered,
// or removed individually. User-supplied data (query params, user-agent,
// form fields) is intentionally excluded from logs to prevent PII leaks and
// log injection.
package httpmw

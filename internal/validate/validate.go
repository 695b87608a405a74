// Package validate holds the stateless input checks shared by the public
// API handlers: text sanitization, email format, HTML escaping for outbound
// mail bodies, and origin verification for state-changing requests.
package validate

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// simple local@domain.tld shape; intentionally loose, full RFC 5322
// validation rejects real addresses and the mail provider re-validates anyway
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TextResult is the outcome of sanitizing a single text field.
type TextResult struct {
	Valid     bool
	Sanitized string
	Err       string
}

// Text checks a user-supplied string against the field's max length and
// returns the trimmed value. Oversized input is rejected, never truncated.
func Text(input string, maxLen int, field string) TextResult {
	if input == "" {
		return TextResult{Err: fmt.Sprintf("%s is required", field)}
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return TextResult{Err: fmt.Sprintf("%s cannot be empty", field)}
	}
	if len(trimmed) > maxLen {
		return TextResult{Err: fmt.Sprintf("%s must be %d characters or less", field, maxLen)}
	}
	return TextResult{Valid: true, Sanitized: trimmed}
}

// Email reports whether s looks like a deliverable address.
func Email(s string) bool {
	return len(s) <= 255 && emailRe.MatchString(s)
}

// EscapeHTML escapes &, <, >, " and ' so user text can be interpolated
// into an HTML mail body.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// Origin verifies the Origin/Referer headers of a state-changing request
// against an allow-list of origins ("https://host" form, no trailing slash).
//
// Requests with neither header are accepted: same-origin fetches and direct
// API calls legitimately omit both, so this is a soft CSRF check rather
// than a strict one. The API is cookie-less, which keeps that trade-off
// cheap.
func Origin(origin, referer string, allowed []string) bool {
	if origin == "" && referer == "" {
		return true
	}
	if origin != "" && contains(allowed, origin) {
		return true
	}
	if referer != "" {
		u, err := url.Parse(referer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		return contains(allowed, u.Scheme+"://"+u.Host)
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

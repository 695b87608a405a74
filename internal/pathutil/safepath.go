package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
// URL paths containing these never map to site files and are rejected
// before any filesystem lookup.
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

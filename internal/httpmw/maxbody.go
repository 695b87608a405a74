package httpmw

import "net/http"

// MaxBody caps the request body size for the whole listener. The contact
// form is the largest legitimate payload and fits comfortably under the
// limit; anything bigger gets 413 when the body is read.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}

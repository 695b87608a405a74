package httpmw

import (
	"net/http"

	"github.com/cyberbrosec/cyberbro-web/internal/log"
	"github.com/cyberbrosec/cyberbro-web/internal/xerrors"
)

// Recover converts handler panics into logged 500 responses. onPanic, if
// set, fires after logging (prometheus counter hook).
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response on purpose
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = xerrors.Newf("panic: %v", rec)
				} else {
					err = xerrors.EnsureTrace(err)
				}

				L.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered")

				if onPanic != nil {
					onPanic()
				}

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

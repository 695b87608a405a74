package sitehandler

import (
	"io/fs"
	"net/http"
)

// Handler serves the prerendered marketing site.
type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: *opts}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// hardening: only allow GET/HEAD
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	file, found := resolvePath(r.URL.Path, h.opts.SiteFS)
	if !found {
		h.serveNotFound(w, r)
		return
	}

	if cc := cacheControlForFile(file, h.opts); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}

	http.ServeFileFS(w, r, h.opts.SiteFS, file)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	// avoid caching 404 responses
	w.Header().Set("Cache-Control", "no-store")

	if existsFile(h.opts.SiteFS, h.opts.NotFoundFile) {
		serveFileWithStatus(w, r, http.StatusNotFound, h.opts.SiteFS, h.opts.NotFoundFile)
		return
	}

	// last resort: plain text
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

// we want to serve a file but force an HTTP status code (404)
// but http.ServeFileFS writes a status code on its own so wrapping
// ResponseWriter and overriding the first WriteHeader call here
type statusOverrideWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusOverrideWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(w.status)
}

func serveFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	sw := &statusOverrideWriter{ResponseWriter: w, status: status}
	http.ServeFileFS(sw, r, fsys, name)
}

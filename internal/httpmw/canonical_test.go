package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCanonical(t *testing.T, target string, opts CanonicalOptions) *httptest.ResponseRecorder {
	t.Helper()
	passed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	Canonical(opts)(passed).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func TestCanonical_WWWStrip(t *testing.T) {
	rec := serveCanonical(t, "https://www.cyberbrosecurity.work/training", CanonicalOptions{})
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://cyberbrosecurity.work/training" {
		t.Fatalf("Location = %q", got)
	}
}

func TestCanonical_TrailingSlash(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"https://cyberbrosecurity.work/training/", "https://cyberbrosecurity.work/training"},
		{"https://cyberbrosecurity.work/a/b///", "https://cyberbrosecurity.work/a/b"},
		{"https://cyberbrosecurity.work/training/?page=2", "https://cyberbrosecurity.work/training?page=2"},
	}
	for _, tt := range tests {
		rec := serveCanonical(t, tt.target, CanonicalOptions{})
		if rec.Code != http.StatusMovedPermanently {
			t.Fatalf("%s: status = %d, want 301", tt.target, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tt.want {
			t.Fatalf("%s: Location = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestCanonical_BothAtOnce(t *testing.T) {
	rec := serveCanonical(t, "https://www.cyberbrosecurity.work/training/", CanonicalOptions{})
	if got := rec.Header().Get("Location"); got != "https://cyberbrosecurity.work/training" {
		t.Fatalf("Location = %q", got)
	}
}

func TestCanonical_NoRedirectNeeded(t *testing.T) {
	for _, target := range []string{
		"https://cyberbrosecurity.work/",
		"https://cyberbrosecurity.work/training",
		"https://cyberbrosecurity.work/assets/app.css",
	} {
		rec := serveCanonical(t, target, CanonicalOptions{})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200 pass-through", target, rec.Code)
		}
	}
}

func TestCanonical_RootSlashPreserved(t *testing.T) {
	// "/" must not be stripped to ""
	rec := serveCanonical(t, "https://www.cyberbrosecurity.work/", CanonicalOptions{})
	if got := rec.Header().Get("Location"); got != "https://cyberbrosecurity.work/" {
		t.Fatalf("Location = %q", got)
	}
}

func TestCanonical_HostRestrictsWWWStrip(t *testing.T) {
	opts := CanonicalOptions{Host: "cyberbrosecurity.work"}

	rec := serveCanonical(t, "https://www.cyberbrosecurity.work/training", opts)
	if got := rec.Header().Get("Location"); got != "https://cyberbrosecurity.work/training" {
		t.Fatalf("Location = %q", got)
	}

	// unknown hosts keep their www. prefix
	rec = serveCanonical(t, "https://www.example.org/training", opts)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through for unknown host", rec.Code)
	}
}

func TestCanonical_SkipPrefixes(t *testing.T) {
	opts := CanonicalOptions{SkipPrefixes: []string{"/api/", "/-/"}}
	rec := serveCanonical(t, "https://www.cyberbrosecurity.work/api/scam-stats/", opts)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through for skipped prefix", rec.Code)
	}
}

func TestCanonical_PostPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "https://www.cyberbrosecurity.work/api/contact", http.NoBody)
	Canonical(CanonicalOptions{})(next).ServeHTTP(rec, req)
	if !called {
		t.Fatal("POST should not be redirected")
	}
}

package sitehandler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"
)

var fallback = fstest.MapFS{
	"maintenance.html": {Data: []byte("<h1>maintenance</h1>")},
	"404.html":         {Data: []byte("<h1>fallback 404</h1>")},
}

func builtSite() fstest.MapFS {
	return fstest.MapFS{
		"index.html":                    {Data: []byte("<h1>home</h1>")},
		"lineup/index.html":             {Data: []byte("<h1>lineup</h1>")},
		"artists/dj-two/index.html":     {Data: []byte("<h1>dj two</h1>")},
		"404.html":                      {Data: []byte("<h1>site 404</h1>")},
		"_astro/index.B1x9.css":         {Data: []byte("body{}")},
		"images/hero.jpg":               {Data: []byte("jpg")},
		"sitemap-index.xml":             {Data: []byte("<sitemapindex/>")},
		"info/accessibility/index.html": {Data: []byte("<h1>access</h1>")},
	}
}

func newHandler(t *testing.T, site SiteProvider) *Handler {
	t.Helper()
	h, err := New(&Options{Site: site, FallbackFS: fallback})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func get(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(&Options{FallbackFS: fallback}); err == nil {
		t.Error("nil site should fail")
	}
	if _, err := New(&Options{Site: FSSite{builtSite()}}); err == nil {
		t.Error("nil fallback should fail")
	}
	if _, err := New(&Options{Site: FSSite{builtSite()}, FallbackFS: fstest.MapFS{}}); err == nil {
		t.Error("fallback without maintenance page should fail")
	}
}

func TestServe_Pages(t *testing.T) {
	h := newHandler(t, FSSite{builtSite()})
	tests := []struct {
		target string
		status int
		body   string
		cache  string
	}{
		{"/", 200, "home", "no-cache"},
		{"/lineup/", 200, "lineup", "no-cache"},
		{"/artists/dj-two/", 200, "dj two", "no-cache"},
		{"/_astro/index.B1x9.css", 200, "body{}", "public, max-age=31536000, immutable"},
		{"/images/hero.jpg", 200, "jpg", "public, max-age=3600"},
		{"/sitemap-index.xml", 200, "sitemapindex", "no-cache"},
		{"/missing/", 404, "site 404", "no-store"},
		{"/missing.png", 404, "site 404", "no-store"},
		{"/info/../../etc/passwd", 404, "site 404", "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(h, http.MethodGet, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.body)
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.cache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.cache)
			}
		})
	}
}

func TestServe_TrailingSlashRedirect(t *testing.T) {
	h := newHandler(t, FSSite{builtSite()})

	rec := get(h, http.MethodGet, "/info/accessibility?ref=nav")
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/info/accessibility/?ref=nav" {
		t.Fatalf("Location = %q", loc)
	}

	if rec := get(h, http.MethodGet, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for a directory that does not exist", rec.Code)
	}
}

func TestServe_IndexFileRedirectsToDirectory(t *testing.T) {
	h := newHandler(t, FSSite{builtSite()})
	// http.ServeFileFS canonicalises explicit index.html requests.
	rec := get(h, http.MethodGet, "/lineup/index.html")
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "./" {
		t.Fatalf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestServe_FallbackNotFound(t *testing.T) {
	site := builtSite()
	delete(site, "404.html")
	h := newHandler(t, FSSite{site})

	rec := get(h, http.MethodGet, "/gone/")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "fallback 404") {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestServe_Maintenance(t *testing.T) {
	h := newHandler(t, NewDirSite(t.TempDir()))

	rec := get(h, http.MethodGet, "/lineup/")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "maintenance") {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("headers = %v", rec.Header())
	}
}

func TestServe_Methods(t *testing.T) {
	h := newHandler(t, FSSite{builtSite()})

	rec := get(h, http.MethodHead, "/")
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("HEAD: status = %d, body len = %d", rec.Code, rec.Body.Len())
	}

	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := get(h, m, "/")
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
			t.Errorf("%s: status = %d, Allow = %q", m, rec.Code, rec.Header().Get("Allow"))
		}
	}
}

func TestDirSite_BecomesReady(t *testing.T) {
	dir := t.TempDir()
	site := NewDirSite(dir)
	if _, ok := site.SiteFS(); ok {
		t.Fatal("empty dir should not be ready")
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := site.SiteFS(); !ok {
		t.Fatal("dir with index.html should be ready")
	}
	if site.Root() != dir {
		t.Fatalf("Root = %q", site.Root())
	}

	h := newHandler(t, site)
	if rec := get(h, http.MethodGet, "/"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegisterRoutes_Fallback(t *testing.T) {
	h := newHandler(t, FSSite{builtSite()})

	r := chi.NewRouter()
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("api"))
	})
	h.RegisterRoutes(r)

	if rec := get(r, http.MethodGet, "/api/health"); rec.Body.String() != "api" {
		t.Fatalf("explicit route lost: %q", rec.Body.String())
	}
	if rec := get(r, http.MethodGet, "/lineup/"); !strings.Contains(rec.Body.String(), "lineup") {
		t.Fatalf("site fallback not used: %q", rec.Body.String())
	}
	// POST to a GET-only route reaches the site handler's method check.
	if rec := get(r, http.MethodPost, "/api/health"); rec.Header().Get("Allow") != "GET, HEAD" {
		t.Fatalf("Allow = %q", rec.Header().Get("Allow"))
	}
}

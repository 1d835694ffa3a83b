package healthhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rwaddinsall/hcf2025/internal/strapi"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	return f.err
}

type fakeContent struct{ fetchedAt string }

func (f fakeContent) FetchedAt() string { return f.fetchedAt }
func (f fakeContent) ReadyErr() error {
	if f.fetchedAt == "" {
		return errors.New("no snapshot")
	}
	return nil
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 5e6, time.UTC) }

func newRouter(opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	r := chi.NewRouter()
	NewAPI(opts).RegisterRoutes(r)
	return r
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Report {
	t.Helper()
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rep
}

func TestHealth_Healthy(t *testing.T) {
	p := &fakePinger{}
	h := newRouter(Options{
		Strapi:      p,
		StrapiURL:   "https://cms.example.com//",
		SiteURL:     "https://festival.example.com",
		Content:     fakeContent{fetchedAt: "2025-03-01T09:00:00.000Z"},
		Environment: "staging",
		Region:      "ap-southeast-2",
		DeployID:    "d-123",
	})

	rec := do(h, http.MethodGet, Path)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), "\n  \"timestamp\"") {
		t.Errorf("body should be indented:\n%s", rec.Body.String())
	}

	rep := decode(t, rec)
	want := Report{
		Status:      "healthy",
		Timestamp:   "2025-03-01T09:30:00.005Z",
		Version:     "1.0.0",
		Environment: "staging",
		Services: Services{
			Strapi:  StrapiService{Status: "healthy", URL: "https://cms.example.com"},
			Content: ContentService{Status: "healthy", FetchedAt: "2025-03-01T09:00:00.000Z"},
			Netlify: PlatformService{Status: "healthy", Region: "ap-southeast-2", DeployID: "d-123"},
		},
		Checks: Checks{EnvironmentVariables: EnvChecks{StrapiURL: true, SiteURL: true}},
	}
	if rep != want {
		t.Fatalf("report = %+v\nwant %+v", rep, want)
	}
	if p.calls != 1 {
		t.Fatalf("ping calls = %d", p.calls)
	}
}

func TestHealth_StrapiStatuses(t *testing.T) {
	cases := map[string]error{
		StatusError:       &strapi.StatusError{Endpoint: "info-pages", StatusCode: 503, Status: "503 Service Unavailable"},
		StatusUnreachable: errors.New("dial tcp: connection refused"),
	}
	for want, err := range cases {
		h := newRouter(Options{Strapi: &fakePinger{err: err}, StrapiURL: "https://cms.example.com"})
		rec := do(h, http.MethodGet, Path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: code = %d", want, rec.Code)
		}
		if got := decode(t, rec).Services.Strapi.Status; got != want {
			t.Errorf("status = %q, want %q", got, want)
		}
	}
}

func TestHealth_NotConfigured(t *testing.T) {
	rep := decode(t, do(newRouter(Options{}), http.MethodGet, LegacyPath))

	if rep.Services.Strapi != (StrapiService{Status: "unknown", URL: "not-configured"}) {
		t.Errorf("strapi = %+v", rep.Services.Strapi)
	}
	if rep.Environment != "production" || rep.Services.Netlify.Region != "unknown" || rep.Services.Netlify.DeployID != "unknown" {
		t.Errorf("defaults = %+v", rep)
	}
	if rep.Checks.EnvironmentVariables.StrapiURL || rep.Checks.EnvironmentVariables.SiteURL {
		t.Errorf("env checks = %+v", rep.Checks)
	}
	if rep.Services.Content.Status != "unknown" {
		t.Errorf("content = %+v", rep.Services.Content)
	}
}

func TestHealth_ContentNotLoaded(t *testing.T) {
	rep := decode(t, do(newRouter(Options{Content: fakeContent{}}), http.MethodGet, Path))
	if rep.Services.Content != (ContentService{Status: "unavailable"}) {
		t.Fatalf("content = %+v", rep.Services.Content)
	}
}

func TestHealth_Options(t *testing.T) {
	p := &fakePinger{}
	rec := do(newRouter(Options{Strapi: p, StrapiURL: "x"}), http.MethodOptions, Path)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("code = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != "GET, OPTIONS" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if p.calls != 0 {
		t.Fatal("preflight should not ping the CMS")
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := do(newRouter(Options{}), m, Path)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: code = %d", m, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"Method not allowed"}` {
			t.Fatalf("%s: body = %q", m, rec.Body.String())
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s: CORS headers missing", m)
		}
	}
}

type panicPinger struct{}

func (panicPinger) Ping(context.Context) error { panic("pinger exploded") }

func TestHealth_InternalError(t *testing.T) {
	rec := do(newRouter(Options{Strapi: panicPinger{}, StrapiURL: "https://cms.example.com"}), http.MethodGet, Path)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "error" || body["error"] != "pinger exploded" || body["timestamp"] == "" {
		t.Fatalf("body = %v", body)
	}
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rwaddinsall/hcf2025/internal/cfg"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/metrics"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

func fakeCMS(t *testing.T, fail string) *httptest.Server {
	t.Helper()
	bodies := map[string]string{
		"info-pages":            `{"data":[{"id":1,"documentId":"a1","slug":"faq","heading":"FAQ"}]}`,
		"artists":               `{"data":[{"id":3,"documentId":"r1","name":"The Band"}]}`,
		"scrolling-header-text": `{"data":{"id":5,"Text":"Tickets on sale"}}`,
		"general-pages":         `{"data":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep := strings.TrimPrefix(r.URL.Path, "/api/")
		if ep == fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, ok := bodies[ep]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, strapiURL string) cfg.Snapshot {
	t.Helper()
	return cfg.Snapshot{
		StrapiURL: strapiURL,
		Out:       filepath.Join(t.TempDir(), "src", "data", "strapi-content.json"),
		Timeout:   time.Minute,
	}
}

func TestRun_WritesSnapshot(t *testing.T) {
	srv := fakeCMS(t, "")
	conf := testConfig(t, srv.URL)
	m := metrics.NewSnapshot()

	if err := run(context.Background(), conf, log.Nop(), m); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := snapshot.ReadFile(conf.Out)
	if err != nil {
		t.Fatal(err)
	}
	s := doc.Summary()
	if s.InfoPages != 1 || s.Artists != 1 || !s.ScrollingHeader || s.BigLink {
		t.Fatalf("summary = %+v", s)
	}
	if doc.StrapiURL != srv.URL {
		t.Fatalf("strapiUrl = %q", doc.StrapiURL)
	}

	n, err := testutil.GatherAndCount(m.Registry(), "snapshot_strapi_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != len(snapshot.Requests) {
		t.Fatalf("request series = %d, want %d", n, len(snapshot.Requests))
	}
}

func TestRun_ServerErrorFails(t *testing.T) {
	srv := fakeCMS(t, "artists")
	conf := testConfig(t, srv.URL)

	err := run(context.Background(), conf, log.Nop(), metrics.NewSnapshot())
	if err == nil || !strings.Contains(err.Error(), "artists") {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := snapshot.ReadFile(conf.Out); statErr == nil {
		t.Fatal("no file should be written on failure")
	}
}

func TestRequestResult(t *testing.T) {
	if requestResult(snapshot.Result{NotFound: true}) != "not_found" || requestResult(snapshot.Result{}) != "ok" {
		t.Fatal("unexpected request result labels")
	}
}

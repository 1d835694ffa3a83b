package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubContent struct{ fetched, hash string }

func (s stubContent) FetchedAt() string   { return s.fetched }
func (s stubContent) ContentHash() string { return s.hash }

func TestContentHeaders(t *testing.T) {
	info := stubContent{fetched: "2025-03-01T09:30:00.123Z", hash: "0123456789abcdef0123"}
	rec := serve(ContentHeaders(info)(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Fetched-At"); got != info.fetched {
		t.Errorf("fetched = %q", got)
	}
	if got := rec.Header().Get("X-Content-Hash"); got != "0123456789ab" {
		t.Errorf("hash = %q, want 12 chars", got)
	}
}

func TestContentHeaders_Empty(t *testing.T) {
	for _, info := range []ContentInfo{nil, stubContent{}} {
		rec := serve(ContentHeaders(info)(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get("X-Content-Hash") != "" || rec.Header().Get("X-Content-Fetched-At") != "" {
			t.Errorf("headers set without content: %v", rec.Header())
		}
		if rec.Body.String() != "ok" {
			t.Error("handler not called")
		}
	}
}

package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/rwaddinsall/hcf2025/internal/log"
)

type entry struct {
	level string
	msg   string
	err   error
	kv    map[string]any
}

// spyLogger records every call, including those made through With.
type spyLogger struct {
	mu      *sync.Mutex
	entries *[]entry
	fields  []any
}

func newSpyLogger() *spyLogger {
	return &spyLogger{mu: &sync.Mutex{}, entries: &[]entry{}}
}

func (s *spyLogger) record(level, msg string, err error, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string]any{}
	all := append(append([]any{}, s.fields...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		if k, ok := all[i].(string); ok {
			m[k] = all[i+1]
		}
	}
	*s.entries = append(*s.entries, entry{level: level, msg: msg, err: err, kv: m})
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) {
	s.record("debug", msg, nil, kv)
}

func (s *spyLogger) Info(_ context.Context, msg string, kv ...any) {
	s.record("info", msg, nil, kv)
}

func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any) {
	s.record("warn", msg, nil, kv)
}

func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.record("error", msg, err, kv)
}

func (s *spyLogger) Sync() error { return nil }
func (s *spyLogger) With(kv ...any) log.Logger {
	return &spyLogger{mu: s.mu, entries: s.entries, fields: append(append([]any{}, s.fields...), kv...)}
}

func (s *spyLogger) all() []entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entry(nil), *s.entries...)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

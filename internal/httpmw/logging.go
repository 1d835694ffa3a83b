package httpmw

import (
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rwaddinsall/hcf2025/internal/log"
)

// statusWriter records what the handler sent.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
	start  time.Time
	ttfb   time.Duration
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
		w.ttfb = time.Since(w.start)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
		w.ttfb = time.Since(w.start)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// WithLogger puts a request-scoped logger in the context carrying the
// request ID, addresses, method and path.
func WithLogger(base log.Logger) Middleware {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := RequestIDFromContext(ctx)
			client := ClientIPFromContext(ctx)
			peer := r.RemoteAddr
			if h, _, err := net.SplitHostPort(peer); err == nil {
				peer = h
			}
			if client == "" {
				client = peer
			}
			scheme := schemeFromRequest(r)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("client.address", client),
					attribute.String("network.peer.address", peer),
					attribute.String("url.scheme", scheme),
				)
			}

			L := base.With(
				"request_id", reqID,
				"client.address", client,
				"network.peer.address", peer,
				"server.address", r.Host,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"url.scheme", scheme,
			)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

// AccessLogOptions selects which requests are not logged.
type AccessLogOptions struct {
	// SkipPaths are exact paths, typically probes.
	SkipPaths []string
	// SkipExtensions are lower-case file extensions including the dot.
	SkipExtensions []string
}

// DefaultAccessLogOptions skips built assets and the health endpoints.
func DefaultAccessLogOptions() AccessLogOptions {
	return AccessLogOptions{
		SkipPaths: []string{"/-/healthy", "/-/ready", "/api/health"},
		SkipExtensions: []string{
			".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".webp", ".avif",
			".gif", ".svg", ".ico", ".woff", ".woff2",
		},
	}
}

// AccessLog writes one line per request using the logger WithLogger put
// in the context.
func AccessLog(opts AccessLogOptions) Middleware {
	skipPath := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skipPath[p] = struct{}{}
	}
	skipExt := make(map[string]struct{}, len(opts.SkipExtensions))
	for _, e := range opts.SkipExtensions {
		skipExt[strings.ToLower(e)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, start: time.Now()}
			next.ServeHTTP(sw, r)

			if _, ok := skipPath[r.URL.Path]; ok {
				return
			}
			if _, ok := skipExt[strings.ToLower(path.Ext(r.URL.Path))]; ok {
				return
			}

			ctx := r.Context()
			route := RoutePattern(r)
			var reqBytes int64
			if r.ContentLength > 0 {
				reqBytes = r.ContentLength
			}
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.Float64("http.server.ttfb_seconds", sw.ttfb.Seconds()))
			}

			log.FromContext(ctx).Info(ctx, "http request",
				"http.response.status_code", sw.code(),
				"http.server.request.duration", time.Since(sw.start).Seconds(),
				"http.response.body.size", sw.bytes,
				"http.request.body.size", reqBytes,
				"http.route", route,
			)
		})
	}
}

// schemeFromRequest trusts X-Forwarded-Proto only because ClientIP strips
// it from requests that did not come through a trusted proxy.
func schemeFromRequest(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		s := strings.ToLower(strings.TrimSpace(strings.Split(xf, ",")[0]))
		if s == "http" || s == "https" {
			return s
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// Scope tags the logger and span with the handler name.
func Scope(handler string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("handler", handler))
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

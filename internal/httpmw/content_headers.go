package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo describes the snapshot currently being served.
type ContentInfo interface {
	FetchedAt() string
	ContentHash() string
}

const shortHashLen = 12

// ContentHeaders stamps responses with X-Content-Fetched-At and a short
// X-Content-Hash so a page can be traced back to the snapshot it came
// from. Nothing is set before the first snapshot is loaded.
func ContentHeaders(info ContentInfo) Middleware {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fetched, hash := info.FetchedAt(), info.ContentHash()
			if fetched != "" {
				w.Header().Set("X-Content-Fetched-At", fetched)
			}
			if hash != "" {
				short := hash
				if len(short) > shortHashLen {
					short = short[:shortHashLen]
				}
				w.Header().Set("X-Content-Hash", short)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("content.fetched_at", fetched),
					attribute.String("content.hash", hash),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const TraceIDHeader = "X-Trace-Id"

// TraceResponseHeaders exposes the request's trace so a visitor's bug report
// can be matched to it. Server-Timing carries a W3C traceparent that browser
// RUM scripts read from the navigation timing entry.
func TraceResponseHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
			w.Header().Add("Server-Timing", `traceparent;desc="`+traceparent(sc)+`"`)
		}
		next.ServeHTTP(w, r)
	})
}

func traceparent(sc trace.SpanContext) string {
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + sc.TraceFlags().String()
}

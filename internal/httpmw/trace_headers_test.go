package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTraceResponseHeaders(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(t.Context(), "req")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := serve(TraceResponseHeaders(okHandler), req)

	sc := span.SpanContext()
	if got := rec.Header().Get(TraceIDHeader); got != sc.TraceID().String() {
		t.Fatalf("%s = %q", TraceIDHeader, got)
	}
	want := `traceparent;desc="00-` + sc.TraceID().String() + "-" + sc.SpanID().String() + `-01"`
	if got := rec.Header().Get("Server-Timing"); got != want {
		t.Fatalf("Server-Timing = %q, want %q", got, want)
	}

	rec = serve(TraceResponseHeaders(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(TraceIDHeader) != "" || rec.Header().Get("Server-Timing") != "" {
		t.Fatal("trace headers without a span")
	}
}

func TestAnnotateHTTPRoute(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, span := tp.Tracer("test").Start(req.Context(), "server")
			defer span.End()
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}, AnnotateHTTPRoute)
	r.Get("/info/{slug}", okHandler)

	serve(r, httptest.NewRequest(http.MethodGet, "/info/faq", nil))

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "GET /info/{slug}" {
		t.Fatalf("spans = %v", spans)
	}
}

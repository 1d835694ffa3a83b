package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// Recover turns a handler panic into a logged error and a 500, if the
// handler had not started the response yet. onPanic, when set, runs after
// logging so callers can count panics. http.ErrAbortHandler is re-raised
// for net/http to handle.
func Recover(logger log.Logger, onPanic func()) Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, ok := w.(*statusWriter)
			if !ok {
				sw = &statusWriter{ResponseWriter: w}
			}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, isErr := rec.(error)
				if !isErr {
					err = fmt.Errorf("%v", rec)
				}
				ctx := r.Context()
				L := logger
				if cl := log.FromContext(ctx); cl != log.Nop() {
					L = cl
				}
				L.Error(ctx, xerrors.WithStack(err), "panic serving request",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"panic.stack", string(debug.Stack()),
				)
				if onPanic != nil {
					onPanic()
				}
				if sw.status == 0 {
					http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

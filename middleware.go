package delayq

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

const panicStackSize = 4096

// recoverer turns a panicking ops handler into a 500 and logs the stack.
func recoverer(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				l.ErrorContext(r.Context(), "panic recovered",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(stack)),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprint(rec)})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package configui

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery recovers from panics in HTTP handlers and returns HTTP 500 to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "panic in handler", "panic", rec, "stack", string(debug.Stack()))
				writeJSONError(r.Context(), w, http.StatusText(http.StatusInternalServerError), false, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// applyMiddlewares applies middlewares to a handler in the order they appear.
// The first middleware in the slice is the outermost (executes first).
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/logger"
)

// Recovery turns a handler panic into a 500 response. Ledger writes happen inside
// transactions that roll back on the unwinding path, so nothing half-posted remains.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			meta := domain.RequestMetaFromContext(r.Context())
			logger.FromContext(r.Context()).Error().
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Str("request_id", meta.RequestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("panic recovered")

			writeError(w, http.StatusInternalServerError, "internal server error", "")
		}()

		next.ServeHTTP(w, r)
	})
}

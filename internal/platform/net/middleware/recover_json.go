package middleware

import (
	"net/http"
	"runtime/debug"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	phttp "flowkeeper/internal/platform/net/http"
)

// RecoverJSON turns a panic into a logged stack and a JSON 500 envelope
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Named("http").Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("panic recovered")
			phttp.RespondError(w, r, perr.PanicErrf("panic recovered"))
		}()
		next.ServeHTTP(w, r)
	})
}

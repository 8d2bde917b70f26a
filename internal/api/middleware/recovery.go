package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

// Recovery turns handler panics into a 500 Problem response. When the
// handler already started its response (a half-written JSON body or an
// upgraded stream) the panic is only logged.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				started := sw.wroteHeader || sw.hijacked

				log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("route", routePattern(r)).
					Str("panic_type", fmt.Sprintf("%T", rec)).
					Str("panic", fmt.Sprint(rec)).
					Bool("response_started", started).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if started {
					return
				}

				problem := models.NewInternalError(requestID, "the server failed while handling this request")
				problem.Instance = r.URL.Path
				problem.Write(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

// Package recovery turns handler panics into a 500 JSON error payload.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/nimburion/docroute/pkg/controller"
	"github.com/nimburion/docroute/pkg/observability/logger"
)

const panicMessage = "an unexpected error occurred"

// Recovery creates middleware that recovers from panics in HTTP handlers.
// The panic is logged with its stack trace and, when nothing has been
// written yet, answered with {"success":false,"message":...,"code":-1}.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithContext(r.Context()).Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				if tw.written {
					return
				}
				resp := controller.ErrorResponse{Success: false, Message: panicMessage, Code: controller.DefaultErrorCode}
				if err := controller.JSON(tw, http.StatusInternalServerError, resp); err != nil {
					log.Error("failed to send error response", "error", err)
				}
			}()
			next.ServeHTTP(tw, r)
		})
	}
}

type trackingWriter struct {
	http.ResponseWriter
	written bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.written = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.written = true
	return t.ResponseWriter.Write(b)
}

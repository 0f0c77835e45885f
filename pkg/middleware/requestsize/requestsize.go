// Package requestsize caps request body sizes.
package requestsize

import (
	"fmt"
	"net/http"

	"github.com/nimburion/docroute/pkg/controller"
)

// Middleware enforces a maximum request body size in bytes. A declared
// Content-Length over the limit is rejected with 413 before the handler
// runs; undeclared bodies are cut off by http.MaxBytesReader and surface as
// a 413 from controller.DecodeJSON. A non-positive maxBytes disables the
// check.
func Middleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				_ = controller.JSON(w, http.StatusRequestEntityTooLarge, controller.ErrorResponse{
					Success: false,
					Message: fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", maxBytes),
					Code:    http.StatusRequestEntityTooLarge,
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

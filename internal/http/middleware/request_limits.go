package middleware

import (
	"net/http"

	"github.com/tendant/simple-org-slim/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. A request whose declared
// length is already over the cap is answered with 413 before the handler
// runs; a chunked body is cut off when it reaches the cap. A non-positive
// maxBytes disables the limit.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/tendant/payportal/internal/httputil"
)

// RequestSizeLimit caps the request body at maxBytes. Handlers decoding with
// httputil.DecodeJSON answer 413 when the cap is hit.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
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

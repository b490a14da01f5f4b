package middleware

import (
	"mime"
	"net/http"

	"github.com/onnwee/forcegraph/internal/apierr"
)

// LimitBody caps request bodies at maxBytes. Handlers see a read error
// (*http.MaxBytesError) once the limit is crossed.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects bodies that are not declared as application/json.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidContentType())
			return
		}
		next.ServeHTTP(w, r)
	})
}

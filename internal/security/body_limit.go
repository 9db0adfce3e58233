package security

import "net/http"

// BodySizeLimit caps request bodies at maxBytes. A non-positive limit
// disables the cap. Reads past the limit surface as *http.MaxBytesError,
// which the schema validator turns into a 413.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import "net/http"

// RequestSize caps request bodies at maxBytes. Reads past the limit fail
// with *http.MaxBytesError, which the JSON decoder reports as a 400.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeMB is RequestSize with the limit given in megabytes.
func RequestSizeMB(mb int) func(http.Handler) http.Handler {
	return RequestSize(int64(mb) << 20)
}

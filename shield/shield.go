// Package shield provides reusable HTTP hardening middleware: security
// headers, request body limits, per-IP rate limiting, and HEAD method
// handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(16 << 20) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// DefaultStack returns the standard middleware stack for a JSON API.
// Order: HeadToGet → SecurityHeaders → MaxBody.
func DefaultStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
	}
}

// HeadToGet converts HEAD requests to GET so handlers registered with
// r.Get() respond with 200 instead of 405. net/http strips the body for
// HEAD responses automatically.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody limits the size of every request body. Oversized reads fail
// inside the handler with http.MaxBytesError.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

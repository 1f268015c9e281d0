package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver receives one observation per finished request.
type HTTPObserver interface {
	ObserveHTTP(method, path, status string, seconds float64)
}

// Metrics records request counts and latencies labelled by chi route pattern,
// so /api/admin/keys/{key} is one series however many keys are looked up.
// Requests that match no route share the "unmatched" label.
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrapWriter(w)

			next.ServeHTTP(ww, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			obs.ObserveHTTP(r.Method, path, strconv.Itoa(ww.status), time.Since(start).Seconds())
		})
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
	"github.com/gorilla/mux"
)

// Metrics records HTTP metrics labelled by the route template.
func Metrics(m *metrics.RateMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.RecordHTTPRequest(route, r.Method, strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}

package http

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestObserver receives per-route request and error counts.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
	ObserveBusinessError(code string)
}

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		evt := log.Info()
		if rec.status >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Instrument records metrics for one named route. obs may be nil.
func Instrument(route string, obs RequestObserver, next http.Handler) http.Handler {
	if obs == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		obs.ObserveRequest(route, r.Method, rec.status, time.Since(start))
		if rec.errorCode != "" {
			obs.ObserveBusinessError(rec.errorCode)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	errorCode string
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

package rest

import (
	"log"
	"net/http"
	"time"

	"github.com/cinderworks/mechvolt/internal/platform/id"
	"github.com/cinderworks/mechvolt/internal/platform/requestctx"
)

const requestIDHeader = "X-Request-Id"

// WithRequestID tags every request with an identifier that follows it
// through gateway logs. An inbound header wins so callers can correlate
// retries.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			generated, err := id.NewID()
			if err != nil {
				log.Printf("generate request id: %v", err)
			} else {
				requestID = generated
			}
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), requestID)))
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WithAccessLog logs one line per request.
func WithAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		log.Printf("http %s %s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, recorder.status, time.Since(start).Round(time.Millisecond),
			requestctx.RequestIDFromContext(r.Context()))
	})
}

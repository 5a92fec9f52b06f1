package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/metrics"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-Id"

type ctxKey struct{}

// requestInfo is allocated per request by instrument and filled by handlers.
type requestInfo struct {
	outcome assets.Outcome
}

func setOutcome(r *http.Request, outcome assets.Outcome) {
	if info, ok := r.Context().Value(ctxKey{}).(*requestInfo); ok {
		info.outcome = outcome
	}
}

// withRequestID propagates X-Request-Id or generates one
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r.Header.Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

// instrument logs each request once and records it in m when m is non-nil
func instrument(logger zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, info)))

			duration := time.Since(start)
			if m != nil {
				m.ObserveRequest(r.Method, rec.statusCode, string(info.outcome), duration)
			}

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.statusCode).
				Str("outcome", string(info.outcome)).
				Int64("bytes", rec.bytes).
				Dur("duration", duration).
				Str("request_id", r.Header.Get(requestIDHeader)).
				Msg("HTTP request")
		})
	}
}

// recovery turns a handler panic into a 500 for that request only
func recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					if rv == http.ErrAbortHandler {
						panic(rv)
					}
					logger.Error().Interface("panic", rv).Str("path", r.URL.Path).Msg("recovered from handler panic")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	bytes       int64
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

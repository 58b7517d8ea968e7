package api

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type httpMiddleware func(next http.Handler) http.Handler

const requestIDHeader = "X-Request-Id"

var ErrRateLimit = errors.New("rate limit")

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent events working behind the middlewares.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middlewares.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func loggingMiddleware(logger *zap.Logger) httpMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)
			logger := logger.With(
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			logger.Info("Handling request")
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.Error("Fail", zap.Int("status", rec.status))
			case rec.status >= http.StatusBadRequest:
				logger.Info("Fail", zap.Int("status", rec.status))
			default:
				logger.Info("Success", zap.Int("status", rec.status))
			}
		})
	}
}

var httpResponseTimeMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Time spent serving http requests",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 10, 60, 400},
}, []string{"operation"})

func metricsMiddleware(operation string) httpMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			httpResponseTimeMetric.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		})
	}
}

type limiter interface {
	ShouldAllow(n uint64) (bool, error)
}

var _ limiter = (*ratelimiter.DefaultLimiter)(nil)

func rateLimitMiddleware(lim limiter) httpMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := lim.ShouldAllow(1)
			if err != nil || !allowed {
				writeError(w, r, ErrRateLimit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func applyMiddlewares(handler http.Handler, middleware ...httpMiddleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

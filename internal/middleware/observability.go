// Package middleware carries the HTTP cross-cutting concerns: request
// ids, structured request logs, metrics and tracing spans.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"promosms/internal/metrics"
	"promosms/internal/tracing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "X-Request-Id"

// Observability wraps every request in a span, assigns a request id and
// records request metrics and a start/finish log pair.
func Observability(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), "http_request",
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", clientIP(r)),
			)
			defer span.End()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			r = r.WithContext(ctx)
			start := time.Now()

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"trace_id":   tracing.TraceID(ctx),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote_ip":  clientIP(r),
			})
			entry.Debug("HTTP request started")

			metrics.IncrementCounter("http_requests_total", map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
			})

			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)

			span.SetAttributes(
				attribute.Int("http.response.status_code", wrapper.statusCode),
			)
			if wrapper.statusCode >= 400 {
				setSpanStatus(span, codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				setSpanStatus(span, codes.Ok, "")
			}

			metrics.RecordTimer("http_request_duration", duration, map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			})

			entry.WithFields(logrus.Fields{
				"status":      wrapper.statusCode,
				"duration_ms": duration.Milliseconds(),
			}).Info("HTTP request completed")
		})
	}
}

func setSpanStatus(span oteltrace.Span, code codes.Code, description string) {
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWrapper) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

// clientIP prefers proxy-set headers and falls back to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

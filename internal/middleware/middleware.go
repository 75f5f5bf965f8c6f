// file: internal/middleware/middleware.go
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"unigame/internal/contextutils"

	"go.uber.org/zap"
)

const slowRequestThreshold = 2 * time.Second

// EnhancedLogging logs request completion with status, size and duration
func EnhancedLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := contextutils.GetRequestStart(r.Context())
			requestLogger := contextutils.GetLogger(r.Context(), logger)

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.Int("status", rw.status),
				zap.Duration("duration", duration),
				zap.Int64("response_size", rw.bytesWritten),
			}

			switch {
			case rw.status >= http.StatusInternalServerError:
				requestLogger.Error("Request completed", fields...)
			case duration > slowRequestThreshold:
				requestLogger.Warn("Slow request detected", fields...)
			default:
				requestLogger.Info("Request completed", fields...)
			}
		})
	}
}

// RecoverPanic turns a handler panic into a 500 response
func RecoverPanic(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					contextutils.GetLogger(r.Context(), logger).Error("Panic recovered",
						zap.Any("panic", err),
						zap.Stack("stack"),
					)

					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, `{"success":false,"error":{"type":"INTERNAL_ERROR","message":"An unexpected error occurred"}}`)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows browser clients from origin
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Correlation-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Correlation-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter records the status and size of a response
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	rw.wroteHeader = true
	written, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += int64(written)
	return written, err
}

// Hijack lets websocket upgrades pass through the logging middleware
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

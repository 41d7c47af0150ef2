// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/paifang/paifang/internal/metrics"
	"github.com/paifang/paifang/pkg/logger"
)

type contextKey string

// RequestIDKey 请求ID的context键
const RequestIDKey contextKey = "request_id"

// RequestID 请求ID追踪中间件
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter 捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging 请求日志与指标中间件
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID, _ := r.Context().Value(RequestIDKey).(string)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		metrics.RecordRequest(r.Method, r.URL.Path, rw.statusCode, duration)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("请求处理完成")
	})
}

// Recovery 恐慌恢复中间件
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("请求处理恐慌")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":true,"code":"INTERNAL_ERROR","message":"内部错误"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

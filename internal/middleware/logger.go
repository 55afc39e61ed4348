package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestObserver учитывает длительность обработанных запросов.
type RequestObserver interface {
	ObserveRequest(method string, status int, d time.Duration)
}

// Logger логирует каждый запрос через zap. observer может быть nil.
func Logger(logger *zap.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("uri", r.URL.Path),
				zap.Int("status", status),
				zap.Int("size", ww.BytesWritten()),
				zap.Duration("duration", duration),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			)

			if observer != nil {
				observer.ObserveRequest(r.Method, status, duration)
			}
		})
	}
}

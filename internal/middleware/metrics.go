package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver はHTTPレスポンスの観測に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type HTTPObserver interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// NewMetricsMiddleware はレスポンスのステータスコードとレイテンシを
// 観測するミドルウェアを返す。
func NewMetricsMiddleware(observer HTTPObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			observer.RecordHTTPStatus(rec.statusCode)
			observer.RecordRequestLatency(time.Since(start))
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/myshopper/internal/token"
)

// RefreshRequiredHeader はアクセストークンの失効が近いことをクライアントに
// 知らせるレスポンスヘッダー。CORSのExpose-Headersにも列挙される。
const RefreshRequiredHeader = "X-Token-Refresh-Required"

// refreshSignalThreshold は失効予告を出す残り時間のしきい値。
const refreshSignalThreshold = 2 * time.Minute

// NewRefreshSignalMiddleware はアクセストークンの残り寿命が2分を切った場合に
// X-Token-Refresh-Required: true を付与するミドルウェアを返す。
// トークンのデコードは署名検証なしで行い、失敗してもリクエストは素通しする。
// 認可の判定は後段の認証ミドルウェアの責務であり、ここでは一切行わない。
func NewRefreshSignalMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
				claims := token.DecodeUnchecked(cookie.Value)
				if claims != nil && claims.ExpiresAt != nil {
					if time.Until(claims.ExpiresAt.Time) < refreshSignalThreshold {
						w.Header().Set(RefreshRequiredHeader, "true")
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

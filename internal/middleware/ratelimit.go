package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/myshopper/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
// 固定ウィンドウ方式: ウィンドウ開始からWindow経過で全カウントがリセットされる。
type RateLimiterConfig struct {
	Window          time.Duration // カウントウィンドウの長さ
	GeneralLimit    int           // API全般のウィンドウあたり上限
	LoginLimit      int           // ログイン試行のウィンドウあたり上限
	RefreshLimit    int           // トークンリフレッシュのウィンドウあたり上限
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 15分ウィンドウでAPI全般 50、ログイン 15、リフレッシュ 10。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Window:          15 * time.Minute,
		GeneralLimit:    50,
		LoginLimit:      15,
		RefreshLimit:    10,
		CleanupInterval: 5 * time.Minute,
	}
}

// windowCounter はクライアントごとのウィンドウ開始時刻とカウントを保持する。
type windowCounter struct {
	windowStart time.Time
	count       int
}

// classLimiter は1つの制限クラス（general/login/refresh）のカウンタ群を管理する。
type classLimiter struct {
	name   string
	limit  int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*windowCounter
}

// allow はクライアントのリクエストを1件カウントし、上限内かどうかを返す。
// 上限超過の場合はウィンドウ終了までの残り時間も返す。
func (cl *classLimiter) allow(clientIP string, now time.Time) (bool, time.Duration) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	wc, exists := cl.counters[clientIP]
	if !exists || now.Sub(wc.windowStart) >= cl.window {
		// 新規クライアントまたはウィンドウ満了: カウントを振り出しに戻す
		cl.counters[clientIP] = &windowCounter{windowStart: now, count: 1}
		return true, 0
	}

	if wc.count >= cl.limit {
		return false, cl.window - now.Sub(wc.windowStart)
	}
	wc.count++
	return true, 0
}

// cleanup はウィンドウが満了したエントリを削除する。
func (cl *classLimiter) cleanup(now time.Time) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for ip, wc := range cl.counters {
		if now.Sub(wc.windowStart) >= cl.window {
			delete(cl.counters, ip)
		}
	}
}

func (cl *classLimiter) count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.counters)
}

// RateLimiter はクライアントIPごとの固定ウィンドウレート制限を管理する。
// API全般・ログイン・リフレッシュの3クラスが互いに独立してカウントされる。
type RateLimiter struct {
	config  RateLimiterConfig
	general *classLimiter
	login   *classLimiter
	refresh *classLimiter

	onLimited func(class string)

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newClassLimiter("general", config.GeneralLimit, config.Window),
		login:   newClassLimiter("login", config.LoginLimit, config.Window),
		refresh: newClassLimiter("refresh", config.RefreshLimit, config.Window),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func newClassLimiter(name string, limit int, window time.Duration) *classLimiter {
	return &classLimiter{
		name:     name,
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCounter),
	}
}

// SetLimitedCallback は429応答時に呼ばれるフックを設定する。メトリクス用。
func (rl *RateLimiter) SetLimitedCallback(fn func(class string)) {
	rl.onLimited = fn
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証より前段に配置する（未認証リクエストも制限対象）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// LoginMiddleware はログイン試行専用のレート制限ミドルウェアを返す。
// 資格情報の検証より前に適用され、超過時は検証自体が行われない。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.login)
}

// RefreshMiddleware はトークンリフレッシュ専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) RefreshMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.refresh)
}

// GeneralLimiterCount は現在管理されているAPI全般カウンタのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

func (rl *RateLimiter) middleware(cl *classLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)

			ok, retryAfter := cl.allow(clientIP, time.Now())
			if !ok {
				writeRateLimitResponse(w, retryAfter)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", cl.name),
				)
				if rl.onLimited != nil {
					rl.onLimited(cl.name)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.general.cleanup(now)
			rl.login.cleanup(now)
			rl.refresh.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。ポート番号は除去する。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはウィンドウ終了までの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     model.ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	})
}

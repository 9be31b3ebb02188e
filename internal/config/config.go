package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT: アクセス用とリフレッシュ用で独立した署名シークレットを持つ
	AccessJWTSecret  string
	RefreshJWTSecret string
	AccessLifetime   time.Duration
	RefreshLifetime  time.Duration

	// Password
	BcryptCost int

	// Rate Limit（固定ウィンドウ、件数/ウィンドウ/IP）
	RateLimitWindow  time.Duration
	RateLimitGeneral int
	RateLimitLogin   int
	RateLimitRefresh int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AccessJWTSecret = os.Getenv("ACCESS_JWT_SECRET")
	if cfg.AccessJWTSecret == "" {
		missing = append(missing, "ACCESS_JWT_SECRET")
	}

	cfg.RefreshJWTSecret = os.Getenv("REFRESH_JWT_SECRET")
	if cfg.RefreshJWTSecret == "" {
		missing = append(missing, "REFRESH_JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// アクセスとリフレッシュのシークレットが同一だと、トークン種別の取り違え攻撃を
	// 署名層で防げなくなるため起動を拒否する
	if cfg.AccessJWTSecret == cfg.RefreshJWTSecret {
		return nil, fmt.Errorf("ACCESS_JWT_SECRET and REFRESH_JWT_SECRET must differ")
	}

	// Optional fields with defaults
	cfg.AccessLifetime = getEnvDuration("ACCESS_JWT_LIFETIME", 2*time.Hour)
	cfg.RefreshLifetime = getEnvDuration("REFRESH_JWT_LIFETIME", 7*24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 50)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 15)
	cfg.RateLimitRefresh = getEnvInt("RATE_LIMIT_REFRESH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "4000")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:4000")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

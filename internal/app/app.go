package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/myshopper/internal/auth"
	"github.com/hitoshi/myshopper/internal/cart"
	"github.com/hitoshi/myshopper/internal/catalog"
	"github.com/hitoshi/myshopper/internal/config"
	"github.com/hitoshi/myshopper/internal/database"
	"github.com/hitoshi/myshopper/internal/handler"
	"github.com/hitoshi/myshopper/internal/logger"
	"github.com/hitoshi/myshopper/internal/metrics"
	"github.com/hitoshi/myshopper/internal/middleware"
	"github.com/hitoshi/myshopper/internal/password"
	"github.com/hitoshi/myshopper/internal/repository"
	"github.com/hitoshi/myshopper/internal/security"
	"github.com/hitoshi/myshopper/internal/token"
	"github.com/hitoshi/myshopper/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "4000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	adminRepo := repository.NewPostgresAdminRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)

	// 3. トークン・パスワードサービスの初期化
	tokenService, err := token.NewService(token.Config{
		AccessSecret:    []byte(cfg.AccessJWTSecret),
		RefreshSecret:   []byte(cfg.RefreshJWTSecret),
		AccessLifetime:  cfg.AccessLifetime,
		RefreshLifetime: cfg.RefreshLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to build token service: %w", err)
	}
	hasher := password.NewHasher(cfg.BcryptCost)

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, adminRepo, tokenService, hasher)
	cartService := cart.NewService(userRepo)
	catalogService := catalog.NewService(productRepo)
	userService := user.NewService(userRepo)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. レート制限の初期化（固定ウィンドウ、件数/ウィンドウ/IP）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Window:          cfg.RateLimitWindow,
		GeneralLimit:    cfg.RateLimitGeneral,
		LoginLimit:      cfg.RateLimitLogin,
		RefreshLimit:    cfg.RateLimitRefresh,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()
	rateLimiter.SetLimitedCallback(collector.RecordRateLimited)

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Sanitizer:         security.NewInputSanitizer(),
		TokenService:      tokenService,
		AccountFinder:     userRepo,

		AuthService: authService,
		CartService: cartService,
		UserService: userService,
		Cookies: handler.CookieConfig{
			Domain:        cfg.CookieDomain,
			Secure:        cfg.CookieSecure,
			AccessMaxAge:  int(cfg.AccessLifetime.Seconds()),
			RefreshMaxAge: int(cfg.RefreshLifetime.Seconds()),
		},

		AdminAuthService: authService,
		AdminDirectory:   adminRepo,

		CatalogService: catalogService,

		Collector:   collector,
		HTTPMetrics: collector,
	}
	router := handler.NewRouter(deps)

	// 8. /metricsはAPIルーターの外に置き、レート制限やCORSの対象外とする
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.SetupMetricsRoute(registry))
	mux.Handle("/", router)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

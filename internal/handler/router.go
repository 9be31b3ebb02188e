package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/myshopper/internal/middleware"
	"github.com/hitoshi/myshopper/internal/security"
	"github.com/hitoshi/myshopper/internal/token"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Sanitizer         security.InputSanitizerService
	TokenService      *token.Service
	AccountFinder     middleware.AccountFinder

	// 認証・カート・プロフィール
	AuthService AuthServiceInterface
	CartService CartServiceInterface
	UserService UserServiceInterface
	Cookies     CookieConfig

	// 管理者
	AdminAuthService AdminAuthServiceInterface
	AdminDirectory   AdminDirectoryInterface

	// 商品カタログ
	CatalogService CatalogServiceInterface

	// メトリクス（いずれもnil可）
	Collector   MetricsRecorder
	HTTPMetrics middleware.HTTPObserver
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → RateLimit(General) → Sanitize
//
// 認証が必要なルートはさらに RefreshSignal → AccessAuth を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(deps.RateLimiter.GeneralMiddleware())
	r.Use(middleware.NewSanitizeMiddleware(deps.Sanitizer))

	userHandler := NewUserHandler(deps.AuthService, deps.CartService, deps.UserService, deps.Cookies, deps.Collector)
	adminHandler := NewAdminHandler(deps.AdminAuthService, deps.AdminDirectory)
	productHandler := NewProductHandler(deps.CatalogService)

	accessAuth := middleware.NewAccessAuthMiddleware(deps.TokenService, deps.AccountFinder)
	refreshSignal := middleware.NewRefreshSignalMiddleware()
	paramSanitize := middleware.NewRouteParamSanitizeMiddleware(deps.Sanitizer)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ユーザー認証・カート・プロフィール
	r.Route("/api/auth", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Post("/register", userHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", userHandler.Login)
		r.Post("/change-password", userHandler.ChangePassword)
		r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh-token", userHandler.RefreshToken)
		r.Post("/logout", userHandler.Logout)
		r.Post("/logout-all", userHandler.LogoutAll)

		// --- アクセストークンが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(refreshSignal)
			r.Use(accessAuth)

			r.Get("/dashboard", userHandler.Dashboard)

			r.Post("/addtocart", userHandler.AddToCart)
			r.Post("/removefromcart", userHandler.RemoveFromCart)
			r.Post("/cart-total", userHandler.CartTotal)

			r.Get("/", userHandler.ListUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(paramSanitize)
				r.Get("/", userHandler.GetUser)
				r.Patch("/", userHandler.UpdateUser)
				r.Delete("/", userHandler.DeleteUser)
			})
		})
	})

	// 管理者
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/register", adminHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", adminHandler.Login)
		r.Post("/change-password", adminHandler.ChangePassword)
		r.Get("/", adminHandler.ListAdmins)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(paramSanitize)
			r.Get("/", adminHandler.GetAdmin)
		})
	})

	// 商品カタログ
	r.Route("/api/product", func(r chi.Router) {
		r.Post("/addproduct", productHandler.AddProduct)
		r.Get("/allproducts", productHandler.AllProducts)
		r.Get("/newstocks", productHandler.NewStocks)
		r.Route("/removeproduct/{id}", func(r chi.Router) {
			r.Use(paramSanitize)
			r.Delete("/", productHandler.RemoveProduct)
		})
		r.Route("/{id}", func(r chi.Router) {
			r.Use(paramSanitize)
			r.Get("/", productHandler.GetProduct)
		})
	})

	return r
}

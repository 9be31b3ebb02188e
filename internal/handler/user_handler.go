package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/myshopper/internal/auth"
	"github.com/hitoshi/myshopper/internal/middleware"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/security"
	"github.com/hitoshi/myshopper/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterUser(ctx context.Context, username, email, plain string) (*model.User, error)
	LoginUser(ctx context.Context, email, plain, deviceID string) (*model.User, auth.TokenPair, error)
	Refresh(ctx context.Context, presented string) (*model.User, auth.TokenPair, error)
	Logout(ctx context.Context, presented string) (string, error)
	LogoutAll(ctx context.Context, presented string) (string, error)
	ChangeUserPassword(ctx context.Context, email, plain string) error
}

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, userID string, itemID int) (model.Cart, error)
	Remove(ctx context.Context, userID string, itemID int) (model.Cart, error)
	Total(ctx context.Context, userID string) (model.Cart, error)
}

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]user.Profile, error)
	Get(ctx context.Context, requesterID, targetID string) (*user.Profile, error)
	UpdateUsername(ctx context.Context, requesterID, targetID, username string) error
	Withdraw(ctx context.Context, requesterID, targetID string) error
}

// CookieConfig は認証クッキーの発行設定。
// Secureな環境（HTTPS配備）ではSameSite=Noneでクロスサイトの
// フロントエンドと共存し、ローカルではLaxにフォールバックする。
type CookieConfig struct {
	Domain        string
	Secure        bool
	AccessMaxAge  int // 秒
	RefreshMaxAge int // 秒
}

func (c CookieConfig) sameSite() http.SameSite {
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// MetricsRecorder はハンドラー層から記録するメトリクスの集合。
// internal/metrics.Collector が実装する。
type MetricsRecorder interface {
	RecordRegistration()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenRefresh()
}

// UserHandler は買い物ユーザー関連のHTTPハンドラー。
type UserHandler struct {
	authService AuthServiceInterface
	cartService CartServiceInterface
	userService UserServiceInterface
	cookies     CookieConfig
	collector   MetricsRecorder
}

// NewUserHandler はUserHandlerを生成する。collectorはnil可。
func NewUserHandler(
	authService AuthServiceInterface,
	cartService CartServiceInterface,
	userService UserServiceInterface,
	cookies CookieConfig,
	collector MetricsRecorder,
) *UserHandler {
	return &UserHandler{
		authService: authService,
		cartService: cartService,
		userService: userService,
		cookies:     cookies,
		collector:   collector,
	}
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Username(req.Username).
		Email(email).
		UserPassword(req.Password).
		ConfirmPassword(req.Password, req.ConfirmPassword).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := h.authService.RegisterUser(r.Context(), req.Username, email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordRegistration()
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// Login は資格情報を検証し、トークンペアをHTTP Only Cookieで発行する。
// POST /api/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Email(email).
		RequiredPassword(req.Password).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	loggedIn, pair, err := h.authService.LoginUser(r.Context(), email, req.Password, req.DeviceID)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordLoginFailure()
		}
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	if h.collector != nil {
		h.collector.RecordLoginSuccess()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Logged in successfully",
		"username": loggedIn.Username,
	})
}

type changePasswordRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword はパスワードを更新する。
// POST /api/auth/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Email(email).
		UserPassword(req.Password).
		ConfirmPassword(req.Password, req.ConfirmPassword).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.authService.ChangeUserPassword(r.Context(), email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password changed successfully")
}

// RefreshToken はリフレッシュトークンを回転させ、新しいペアを発行する。
// POST /api/auth/refresh-token
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		handleServiceError(w, model.NewUnauthorizedError("Refresh token is required"))
		return
	}

	_, pair, err := h.authService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	if h.collector != nil {
		h.collector.RecordTokenRefresh()
	}
	writeSuccess(w, http.StatusOK, "Token refreshed successfully")
}

// Logout は現在のセッションを失効させる。
// クッキーはサーバー側の成否に関わらずクリアする。
// POST /api/auth/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, h.authService.Logout, "Logged out successfully")
}

// LogoutAll はセッション失効に加えてカートを初期化する。
// POST /api/auth/logout-all
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, h.authService.LogoutAll, "Logged out from all devices")
}

func (h *UserHandler) logout(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (string, error), message string) {
	presented := ""
	if cookie, err := r.Cookie(middleware.RefreshCookieName); err == nil {
		presented = cookie.Value
	}

	h.clearAuthCookies(w)

	if _, err := fn(r.Context(), presented); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, message)
}

// Dashboard は認証済みユーザーの確認用エンドポイント。
// GET /api/auth/dashboard
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}
	username, _ := middleware.UsernameFromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Welcome " + username,
		"user_id":  userID,
		"username": username,
	})
}

type cartRequest struct {
	ItemID int `json:"itemId"`
}

// AddToCart は指定スロットの数量を1増やす。
// POST /api/auth/addtocart
func (h *UserHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.adjustCart(w, r, h.cartService.Add, "Added")
}

// RemoveFromCart は指定スロットの数量を1減らす。
// POST /api/auth/removefromcart
func (h *UserHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	h.adjustCart(w, r, h.cartService.Remove, "Removed")
}

func (h *UserHandler) adjustCart(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int) (model.Cart, error), message string) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}

	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := fn(r.Context(), userID, req.ItemID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, message)
}

// CartTotal はカート全体のスロットマップを返す。
// POST /api/auth/cart-total
func (h *UserHandler) CartTotal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}

	cart, err := h.cartService.Total(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ListUsers は全ユーザーをマスク済みメールアドレス付きで返す。
// GET /api/auth/
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.userService.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// GetUser は自分自身のレコードを返す。
// GET /api/auth/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}

	profile, err := h.userService.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

// UpdateUser は自分自身のユーザー名を変更する。
// PATCH /api/auth/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}

	var req updateUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := security.NewValidator().Username(req.Username).Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.userService.UpdateUsername(r.Context(), userID, chi.URLParam(r, "id"), req.Username); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Username updated successfully")
}

// DeleteUser は自分自身のアカウントを削除する。
// DELETE /api/auth/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError("Authentication required"))
		return
	}

	if err := h.userService.Withdraw(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, "Account deleted successfully")
}

func (h *UserHandler) setAuthCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, h.authCookie(middleware.AccessCookieName, pair.Access, h.cookies.AccessMaxAge))
	http.SetCookie(w, h.authCookie(middleware.RefreshCookieName, pair.Refresh, h.cookies.RefreshMaxAge))
}

func (h *UserHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.authCookie(middleware.AccessCookieName, "", -1))
	http.SetCookie(w, h.authCookie(middleware.RefreshCookieName, "", -1))
}

func (h *UserHandler) authCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.sameSite(),
	}
}

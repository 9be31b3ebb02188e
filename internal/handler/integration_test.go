package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/myshopper/internal/auth"
	"github.com/hitoshi/myshopper/internal/cart"
	"github.com/hitoshi/myshopper/internal/middleware"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/password"
	"github.com/hitoshi/myshopper/internal/repository"
	"github.com/hitoshi/myshopper/internal/security"
	"github.com/hitoshi/myshopper/internal/token"
	"github.com/hitoshi/myshopper/internal/user"
)

// memoryUserRepo は実サービスを束ねた結合テスト用のインメモリ実装。
// ローテーション・クリアのcompare-and-swapセマンティクスを
// Postgres実装と同じに保つ。
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*model.User)}
}

func (r *memoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *memoryUserRepo) ListAll(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Password = digest
	}
	return nil
}

func (r *memoryUserRepo) UpdateUsername(_ context.Context, id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Username = username
	}
	return nil
}

func (r *memoryUserRepo) SaveRefreshSession(_ context.Context, userID string, session model.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.RefreshSession = session
	}
	return nil
}

func (r *memoryUserRepo) RotateRefreshSession(_ context.Context, userID, presented string, session model.RefreshSession) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.RefreshSession.Token != presented {
		return false, nil
	}
	u.RefreshSession = session
	return true, nil
}

func (r *memoryUserRepo) ClearRefreshSession(_ context.Context, userID, presented string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.RefreshSession.Token != presented {
		return "", nil
	}
	u.RefreshSession = model.RefreshSession{}
	return u.Username, nil
}

func (r *memoryUserRepo) ClearSessionAndResetCart(_ context.Context, userID, presented string, cart model.Cart) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.RefreshSession.Token != presented {
		return "", nil
	}
	u.RefreshSession = model.RefreshSession{}
	u.Cart = cart
	return u.Username, nil
}

func (r *memoryUserRepo) UpdateCart(_ context.Context, userID string, cart model.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Cart = cart
	}
	return nil
}

func (r *memoryUserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

var _ repository.UserRepository = (*memoryUserRepo)(nil)

// memoryAdminRepo はAdminRepositoryの最小インメモリ実装。
type memoryAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*model.Admin
}

func newMemoryAdminRepo() *memoryAdminRepo {
	return &memoryAdminRepo{admins: make(map[string]*model.Admin)}
}

func (r *memoryAdminRepo) FindByID(_ context.Context, id string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.admins[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, nil
}

func (r *memoryAdminRepo) FindByEmail(_ context.Context, email string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryAdminRepo) Create(_ context.Context, a *model.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.admins[a.ID] = &clone
	return nil
}

func (r *memoryAdminRepo) ListAll(_ context.Context) ([]*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Admin, 0, len(r.admins))
	for _, a := range r.admins {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memoryAdminRepo) UpdatePassword(_ context.Context, id, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.admins[id]; ok {
		a.Password = digest
	}
	return nil
}

var _ repository.AdminRepository = (*memoryAdminRepo)(nil)

// newIntegrationRouter は実サービス（インメモリストア）で構成したルーターを返す。
func newIntegrationRouter(t *testing.T) http.Handler {
	t.Helper()

	tokens, err := token.NewService(token.Config{
		AccessSecret:    []byte("integration-access-secret"),
		RefreshSecret:   []byte("integration-refresh-secret"),
		AccessLifetime:  time.Hour,
		RefreshLifetime: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("トークンサービスの生成に失敗: %v", err)
	}

	userRepo := newMemoryUserRepo()
	adminRepo := newMemoryAdminRepo()
	hasher := password.NewHasher(4) // テスト用の低コスト

	authService := auth.NewService(userRepo, adminRepo, tokens, hasher)
	cartService := cart.NewService(userRepo)
	userService := user.NewService(userRepo)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Window:          time.Minute,
		GeneralLimit:    1000,
		LoginLimit:      1000,
		RefreshLimit:    1000,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		Sanitizer:         security.NewInputSanitizer(),
		TokenService:      tokens,
		AccountFinder:     userRepo,
		AuthService:       authService,
		CartService:       cartService,
		UserService:       userService,
		AdminAuthService:  authService,
		AdminDirectory:    adminRepo,
		CatalogService:    &mockCatalogService{},
	})
}

// do はクッキーを引き継いでリクエストを実行するヘルパー。
func do(t *testing.T, router http.Handler, req *http.Request, cookies []*http.Cookie) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	for _, c := range cookies {
		if c.Value != "" {
			req.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// レスポンスで更新されたクッキーをマージする
	merged := map[string]*http.Cookie{}
	for _, c := range cookies {
		merged[c.Name] = c
	}
	for _, c := range w.Result().Cookies() {
		merged[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(merged))
	for _, c := range merged {
		if c.MaxAge >= 0 {
			out = append(out, c)
		}
	}
	return w, out
}

// TestIntegration_RegisterLoginCartFlow は登録からカート操作までの一連の流れを検証する。
func TestIntegration_RegisterLoginCartFlow(t *testing.T) {
	router := newIntegrationRouter(t)
	var cookies []*http.Cookie

	// 1. 登録
	w, cookies := do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":         "bob",
		"email":            "bob@example.com",
		"password":         "pass1@word",
		"confirm_password": "pass1@word",
	}), cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d (body=%s)", w.Code, w.Body.String())
	}
	if len(cookies) != 0 {
		t.Fatal("登録ではクッキーを発行しない")
	}

	// 2. ログイン
	w, cookies = do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "pass1@word",
	}), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d (body=%s)", w.Code, w.Body.String())
	}
	if len(cookies) != 2 {
		t.Fatalf("ログイン後のクッキー数 = %d, want 2", len(cookies))
	}

	// 3. カートに追加
	w, cookies = do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/addtocart", map[string]int{"itemId": 5}), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("addtocart: status = %d (body=%s)", w.Code, w.Body.String())
	}

	// 4. カート合計: スロット5が1
	w, cookies = do(t, router, httptest.NewRequest(http.MethodPost, "/api/auth/cart-total", nil), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("cart-total: status = %d (body=%s)", w.Code, w.Body.String())
	}
	var got model.Cart
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("カートのパースに失敗: %v", err)
	}
	if got["5"] != 1 {
		t.Errorf("slot 5 = %d, want 1", got["5"])
	}

	// 5. カートから削除
	w, cookies = do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/removefromcart", map[string]int{"itemId": 5}), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("removefromcart: status = %d (body=%s)", w.Code, w.Body.String())
	}

	// 6. カート合計: スロット5が0に戻る
	w, _ = do(t, router, httptest.NewRequest(http.MethodPost, "/api/auth/cart-total", nil), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("cart-total(2): status = %d (body=%s)", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("カートのパースに失敗: %v", err)
	}
	if got["5"] != 0 {
		t.Errorf("slot 5 = %d, want 0", got["5"])
	}
}

// TestIntegration_RefreshRotationAndLogout はトークンのローテーションと失効を検証する。
func TestIntegration_RefreshRotationAndLogout(t *testing.T) {
	router := newIntegrationRouter(t)
	var cookies []*http.Cookie

	w, cookies := do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":         "alice",
		"email":            "alice@example.com",
		"password":         "pass1@word",
		"confirm_password": "pass1@word",
	}), cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d (body=%s)", w.Code, w.Body.String())
	}

	w, cookies = do(t, router, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "pass1@word",
	}), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d (body=%s)", w.Code, w.Body.String())
	}

	// ログイン時のリフレッシュトークンを控えておく
	var firstRefresh string
	for _, c := range cookies {
		if c.Name == middleware.RefreshCookieName {
			firstRefresh = c.Value
		}
	}
	if firstRefresh == "" {
		t.Fatal("refreshjwtクッキーが見つからない")
	}

	// ローテーション
	w, cookies = do(t, router, httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d (body=%s)", w.Code, w.Body.String())
	}

	// 旧トークンの再利用は拒否される
	reuse := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
	reuse.AddCookie(&http.Cookie{Name: middleware.RefreshCookieName, Value: firstRefresh})
	reuseW := httptest.NewRecorder()
	router.ServeHTTP(reuseW, reuse)
	if reuseW.Code != http.StatusUnauthorized {
		t.Errorf("旧トークン再利用: status = %d, want %d", reuseW.Code, http.StatusUnauthorized)
	}

	// 新トークンでのログアウトは成功する
	w, cookies = do(t, router, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status = %d (body=%s)", w.Code, w.Body.String())
	}

	// ログアウト後のダッシュボードは401（クッキーはクリア済み）
	w, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/auth/dashboard", nil), cookies)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("logout後のdashboard: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

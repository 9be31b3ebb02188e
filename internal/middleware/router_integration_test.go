package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/myshopper/internal/security"
)

// TestRouterIntegration_ProtectedRoute_WithMiddlewareChain は
// サニタイズ → リフレッシュ予告 → アクセス認証 のミドルウェアチェーンが
// chi.Routerで正しく動作することを検証する。
func TestRouterIntegration_ProtectedRoute_WithMiddlewareChain(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)
	access, err := tokens.IssueAccess("user-router-test", "bob")
	if err != nil {
		t.Fatalf("トークン発行に失敗: %v", err)
	}

	r := chi.NewRouter()
	r.Use(NewSanitizeMiddleware(security.NewInputSanitizer()))

	// 公開エンドポイント
	r.Get("/api/product/allproducts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 認証が必要なルートグループ
	r.Group(func(r chi.Router) {
		r.Use(NewRefreshSignalMiddleware())
		r.Use(NewAccessAuthMiddleware(tokens, knownUserFinder("user-router-test", "bob")))

		r.Get("/api/auth/dashboard", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	t.Run("GET_protected_with_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_id"] != "user-router-test" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
		}
	})

	t.Run("GET_protected_no_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/dashboard", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("public_endpoint_no_auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/product/allproducts", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
	})
}

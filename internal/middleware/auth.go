// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/token"
)

// クッキー名。ハンドラー側の発行・破棄と共有する。
const (
	AccessCookieName  = "accessjwt"
	RefreshCookieName = "refreshjwt"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey   = contextKey("user_id")
	usernameContextKey = contextKey("username")
)

// AccountFinder は認証済みアカウントの解決に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAccessAuthMiddleware はアクセストークンを検証するミドルウェアを返す。
// トークンはHTTP Only Cookie（accessjwt）を優先し、なければ
// Authorization: Bearerヘッダーから読み取る。
// クレームのアカウントをストアから解決し、ユーザーIDとユーザー名を
// リクエストコンテキストに注入する。
// 期限切れトークンにはTOKEN_EXPIREDの401を返し、その他の検証失敗と区別する。
func NewAccessAuthMiddleware(tokens *token.Service, users AccountFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractAccessToken(r)
			if raw == "" {
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("Authentication required"))
				return
			}

			claims, err := tokens.Verify(raw, token.KindAccess)
			if err != nil {
				if err == token.ErrTokenExpired {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenExpiredError())
					return
				}
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("Invalid access token"))
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				slog.Error("failed to resolve authenticated user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("Invalid access token"))
				return
			}

			ctx := ContextWithUser(r.Context(), user.ID, user.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken はCookie優先・Bearerフォールバックでトークンを取り出す。
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UsernameFromContext はリクエストコンテキストからユーザー名を取得する。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUser はコンテキストに認証済みユーザーの情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, usernameContextKey, username)
}

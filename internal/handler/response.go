// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/myshopper/internal/middleware"
	"github.com/hitoshi/myshopper/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeSuccess は { success: true, message: ... } 形式のレスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success": true,
		"message": message,
	})
}

// decodeJSON はリクエストボディをデコードする。
// 空ボディ・不正JSONはバリデーションエラーとして扱う。
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return model.NewBadRequestError("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewBadRequestError("Request body is required")
		}
		return model.NewBadRequestError("Invalid request body")
	}
	return nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}

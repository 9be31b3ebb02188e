package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/myshopper/internal/security"
)

// NewSanitizeMiddleware はリクエストの全入力文字列からマークアップを除去する
// ミドルウェアを返す。対象はJSONボディの全文字列リーフとクエリ文字列。
// password/confirm_passwordフィールドは素通しする。
// JSONとして解釈できないボディは改変せずそのまま後段へ渡す
// （multipart等のバイナリボディを壊さないため）。
func NewSanitizeMiddleware(sanitizer security.InputSanitizerService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sanitizeQuery(r, sanitizer)
			sanitizeJSONBody(r, sanitizer)
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouteParamSanitizeMiddleware はchiルートパラメータからマークアップを
// 除去するミドルウェアを返す。ルーター直下ではパラメータはまだ解決されて
// いないため、`{id}`等のパターンを持つサブルーターの内側でr.Useすること。
func NewRouteParamSanitizeMiddleware(sanitizer security.InputSanitizerService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sanitizeRouteParams(r, sanitizer)
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeQuery(r *http.Request, sanitizer security.InputSanitizerService) {
	if r.URL.RawQuery == "" {
		return
	}
	query := r.URL.Query()
	cleaned := make(url.Values, len(query))
	for key, values := range query {
		for _, v := range values {
			cleaned.Add(key, sanitizer.Sanitize(v))
		}
	}
	r.URL.RawQuery = cleaned.Encode()
}

// sanitizeRouteParams はルーティング済みのchiパラメータを書き換える。
// サブルーターに入った時点で親パターンのパラメータが解決されている。
func sanitizeRouteParams(r *http.Request, sanitizer security.InputSanitizerService) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return
	}
	for i, v := range rctx.URLParams.Values {
		rctx.URLParams.Values[i] = sanitizer.Sanitize(v)
	}
}

func sanitizeJSONBody(r *http.Request, sanitizer security.InputSanitizerService) {
	if r.Body == nil || r.ContentLength == 0 {
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		return
	}

	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// JSONでないボディはそのまま戻す
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return
	}

	cleaned, err := json.Marshal(sanitizer.SanitizeValue(decoded))
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(cleaned))
	r.ContentLength = int64(len(cleaned))
}

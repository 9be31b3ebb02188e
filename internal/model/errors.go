package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// クライアントに返すメッセージと、ステータスコード判定に使うコードを持つ。
// Detailsはバリデーションエラーの集約結果で、複数フィールドの失敗を一括で返す。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, cart, catalog, system
	Details  []string // バリデーションエラーの一覧（フィールドごとに集約）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s", e.Code, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// NewValidationError はフィールドごとに集約されたバリデーションエラーを生成する。
// 途中のフィールドで失敗しても残りの評価は継続され、全件がDetailsに入る。
func NewValidationError(details []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Input validation failed.",
		Category: "validation",
		Details:  details,
	}
}

// NewBadRequestError は単一メッセージの400エラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
// トークン不在・署名不正・種別不一致・保存トークンとの不一致をすべて包含する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
	}
}

// NewTokenExpiredError は期限切れトークンのエラーを生成する。
// クライアントが再ログインではなくリフレッシュフローを選べるよう、
// UNAUTHORIZEDとは別コードで区別する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "Token Expired",
		Category: "auth",
	}
}

// NewNotFoundError は対象レコードが存在しないエラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: "system",
	}
}

// NewConflictError は重複メールアドレスなどの競合エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "validation",
	}
}

// NewInternalError はストア・ハッシュ・署名などの内部失敗を表すエラーを生成する。
// 内部詳細はログにのみ残し、クライアントには一般的なメッセージを返す。
func NewInternalError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  message,
		Category: "system",
	}
}

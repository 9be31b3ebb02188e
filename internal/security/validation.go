package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hitoshi/myshopper/internal/model"
)

// メールアドレスの形式チェック。TLDは2〜3文字に限定する。
var emailPattern = regexp.MustCompile(`^\w+([.\-_]?\w+)*@\w+([.\-_]?\w+)*(\.\w{2,3})+$`)

// パスワードに使用できる記号。この集合以外の文字は拒否する。
const passwordSpecials = "@$#!%*?&"

const (
	usernameMinLen = 3
	usernameMaxLen = 40

	userPasswordMinLen  = 6
	adminPasswordMinLen = 8

	productTitleMaxLen = 100
)

// NormalizeEmail はメールアドレスを前後空白除去と小文字化で正規化する。
// バリデーションと保存の前に必ず適用する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validator はフィールドごとのエラーを蓄積するバリデータ。
// 途中のフィールドで失敗しても残りの評価を継続し、全件を一括で返す。
type Validator struct {
	details []string
}

// NewValidator はValidatorを生成する。
func NewValidator() *Validator {
	return &Validator{}
}

// Err は蓄積されたエラーを1つのAPIErrorとして返す。エラーなしの場合はnil。
func (v *Validator) Err() error {
	if len(v.details) == 0 {
		return nil
	}
	return model.NewValidationError(v.details)
}

func (v *Validator) add(format string, args ...any) {
	v.details = append(v.details, fmt.Sprintf(format, args...))
}

// Username はユーザー名の長さを検証する。前後空白は除去してから判定する。
func (v *Validator) Username(username string) *Validator {
	trimmed := strings.TrimSpace(username)
	if len(trimmed) < usernameMinLen || len(trimmed) > usernameMaxLen {
		v.add("username must be between %d and %d characters", usernameMinLen, usernameMaxLen)
	}
	return v
}

// Email はメールアドレスの形式を検証する。正規化済みの値を渡すこと。
func (v *Validator) Email(email string) *Validator {
	if !emailPattern.MatchString(email) {
		v.add("email address is not valid")
	}
	return v
}

// UserPassword は買い物ユーザーのパスワード要件を検証する。
// 6文字以上、数字1つ以上、記号（%s）1つ以上、許可文字のみ。
func (v *Validator) UserPassword(password string) *Validator {
	if len(password) < userPasswordMinLen {
		v.add("password must be at least %d characters", userPasswordMinLen)
	}
	if !strings.ContainsAny(password, "0123456789") {
		v.add("password must contain at least one digit")
	}
	if !strings.ContainsAny(password, passwordSpecials) {
		v.add("password must contain at least one special character (%s)", passwordSpecials)
	}
	if !allowedPasswordChars(password) {
		v.add("password contains characters outside the allowed set")
	}
	return v
}

// AdminPassword は管理者のパスワード要件を検証する。
// 8文字以上、小文字・大文字・数字・記号を各1つ以上、許可文字のみ。
func (v *Validator) AdminPassword(password string) *Validator {
	if len(password) < adminPasswordMinLen {
		v.add("password must be at least %d characters", adminPasswordMinLen)
	}
	if !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") {
		v.add("password must contain at least one lowercase letter")
	}
	if !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		v.add("password must contain at least one uppercase letter")
	}
	if !strings.ContainsAny(password, "0123456789") {
		v.add("password must contain at least one digit")
	}
	if !strings.ContainsAny(password, passwordSpecials) {
		v.add("password must contain at least one special character (%s)", passwordSpecials)
	}
	if !allowedPasswordChars(password) {
		v.add("password contains characters outside the allowed set")
	}
	return v
}

// ConfirmPassword はパスワードと確認入力の一致を検証する。
func (v *Validator) ConfirmPassword(password, confirm string) *Validator {
	if password != confirm {
		v.add("password and confirm_password do not match")
	}
	return v
}

// RequiredPassword はログイン用に空でないことのみを検証する。
// 既存アカウントのダイジェストとの照合が本体の判定となる。
func (v *Validator) RequiredPassword(password string) *Validator {
	if password == "" {
		v.add("password is required")
	}
	return v
}

// ProductTitle は商品名の長さを検証する。
func (v *Validator) ProductTitle(title string) *Validator {
	trimmed := strings.TrimSpace(title)
	if len(trimmed) == 0 || len(trimmed) > productTitleMaxLen {
		v.add("product_title must be between 1 and %d characters", productTitleMaxLen)
	}
	return v
}

// ProductCategory はカテゴリが定義済みの集合に含まれることを検証する。
func (v *Validator) ProductCategory(category string) *Validator {
	if !model.ValidCategory(category) {
		v.add("category must be one of: %s", strings.Join(model.ProductCategories, ", "))
	}
	return v
}

// ProductPrices は価格が0以上であることを検証する。
func (v *Validator) ProductPrices(newPrice, oldPrice float64) *Validator {
	if newPrice < 0 {
		v.add("new_price must not be negative")
	}
	if oldPrice < 0 {
		v.add("old_price must not be negative")
	}
	return v
}

func allowedPasswordChars(password string) bool {
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case strings.ContainsRune(passwordSpecials, r):
		default:
			return false
		}
	}
	return true
}

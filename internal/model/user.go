// Package model はドメインモデルを定義する。
package model

import "time"

// RefreshSession はアカウントごとに高々1件のリフレッシュトークンレコードを表す。
// 全フィールドがゼロ値（トークンが空文字列）の場合は「セッションなし」を意味する。
// 新しいログインは前回のセッションを無条件に上書きする（同時有効デバイスは1台のみ）。
type RefreshSession struct {
	Token     string
	DeviceID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active はセッションが保存されているかどうかを返す。
// 署名上の有効期限はトークン層で別途検証されるため、ここでは判定しない。
func (s RefreshSession) Active() bool {
	return s.Token != ""
}

// User は買い物ユーザーアカウントを表す。
// Passwordは保存時点でbcryptダイジェストであり、平文を保持することはない。
type User struct {
	ID             string
	Username       string
	Email          string
	Password       string
	Cart           Cart
	RefreshSession RefreshSession
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Admin はカタログ管理者アカウントを表す。
// 管理者ルートはトークンを発行しないため、カートやリフレッシュセッションを持たない。
type Admin struct {
	ID        string
	Username  string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

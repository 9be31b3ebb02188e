// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/myshopper/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// リフレッシュセッションの遷移（保存・ローテーション・クリア）は
// すべてここを経由し、ストアが個々の書き込みを直列化する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複はERROR: duplicate keyとなる。
	Create(ctx context.Context, user *model.User) error

	// ListAll は全ユーザーのusername/emailを返す（一覧表示用）。
	ListAll(ctx context.Context) ([]*model.User, error)

	// UpdatePassword は保存済みダイジェストを差し替える。
	// 呼び出し側でハッシュ済みの値のみを渡すこと。
	UpdatePassword(ctx context.Context, id, digest string) error

	// UpdateUsername はユーザー名を更新する。
	UpdateUsername(ctx context.Context, id, username string) error

	// SaveRefreshSession はリフレッシュセッションを無条件に上書き保存する。
	// ログイン時に使用し、前回のセッションはデバイスを問わず失効する。
	SaveRefreshSession(ctx context.Context, userID string, session model.RefreshSession) error

	// RotateRefreshSession は保存中のトークンがpresentedと一致する場合に限り
	// 新しいセッションに置き換える（compare-and-swap）。置き換えられたか
	// どうかを返す。falseは既にローテーション済み・失効済みを意味する。
	RotateRefreshSession(ctx context.Context, userID, presented string, session model.RefreshSession) (bool, error)

	// ClearRefreshSession は保存中のトークンがpresentedと一致する場合に限り
	// セッションのフィールドをクリアする。一致した場合そのユーザー名を返し、
	// 一致しない場合は空文字列を返す。
	ClearRefreshSession(ctx context.Context, userID, presented string) (string, error)

	// ClearSessionAndResetCart はClearRefreshSessionに加えてカートを
	// 全スロット0の状態に戻す（logout-all用）。
	ClearSessionAndResetCart(ctx context.Context, userID, presented string, cart model.Cart) (string, error)

	// UpdateCart はカートを保存する。
	UpdateCart(ctx context.Context, userID string, cart model.Cart) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// AdminRepository は管理者データの永続化インターフェース。
type AdminRepository interface {
	// FindByID は指定IDの管理者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Admin, error)

	// FindByEmail はメールアドレスで管理者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Admin, error)

	// Create は管理者を作成する。
	Create(ctx context.Context, admin *model.Admin) error

	// ListAll は全管理者のusername/emailを返す。
	ListAll(ctx context.Context) ([]*model.Admin, error)

	// UpdatePassword は保存済みダイジェストを差し替える。
	UpdatePassword(ctx context.Context, id, digest string) error
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// NextProductID は次の連番product_idを返す（空のカタログでは1）。
	NextProductID(ctx context.Context) (int, error)

	// ListAll は全商品を登録順（product_id昇順）に返す。
	ListAll(ctx context.Context) ([]*model.Product, error)

	// ListNewest は最新n件を新しい順に返す。
	ListNewest(ctx context.Context, n int) ([]*model.Product, error)

	// FindByProductID は連番product_idで商品を検索する。見つからない場合はnilを返す。
	FindByProductID(ctx context.Context, productID int) (*model.Product, error)

	// DeleteByProductID は連番product_idで商品を削除する。
	// 削除された場合trueを返す。
	DeleteByProductID(ctx context.Context, productID int) (bool, error)
}

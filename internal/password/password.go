// Package password はパスワードの一方向ハッシュ化と照合を提供する。
//
// ハッシュにはbcrypt（コスト係数可変の適応型ハッシュ）を使用する。
// ソルトはbcryptが呼び出しごとに生成するため、同じ平文でも毎回異なる
// ダイジェストになる。ハッシュは値が変わったときに一度だけ実行すること。
package password

import (
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptのコスト係数のデフォルト値。
const DefaultCost = 10

// Hasher はパスワードのハッシュ化と照合を行う。
type Hasher struct {
	cost int
}

// NewHasher は指定コストのHasherを生成する。
// コストがbcryptの許容範囲外の場合はDefaultCostに丸める。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードからbcryptダイジェストを生成する。
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify は平文パスワードとダイジェストを照合する。
// 不一致はエラーではなくfalseを返す。bcrypt内部の失敗（ダイジェスト
// 破損など）はログに記録した上で照合失敗として扱い、決して「照合成功」
// 側に倒さない。
func (h *Hasher) Verify(plaintext, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true
	}
	if err != bcrypt.ErrMismatchedHashAndPassword {
		slog.Error("password comparison failed",
			slog.String("error", err.Error()),
		)
	}
	return false
}

// IsHashed は値が既にbcryptダイジェストかどうかを判定する。
// パスワード以外のフィールド更新時に再ハッシュしてしまう事故を防ぐ
// ガードとして使用する。
func IsHashed(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

package model

import "time"

// ProductCategories は商品カテゴリの固定集合。バリデーション規則で参照する。
var ProductCategories = []string{"men", "women", "kids", "couples"}

// ValidCategory はカテゴリが固定集合に含まれるかどうかを返す。
func ValidCategory(category string) bool {
	for _, c := range ProductCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Product はカタログ商品を表す。
// ProductIDはフロントエンド向けの連番で、レコードIDとは別に採番される。
// 画像はアップロード時のバイト列をそのまま保持する（変換は外部コラボレータの責務）。
type Product struct {
	ID               string
	ProductID        int
	Title            string
	Category         string
	NewPrice         float64
	OldPrice         float64
	Available        bool
	Image            []byte
	ImageContentType string
	CreatedAt        time.Time
}

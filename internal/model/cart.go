package model

import "strconv"

// CartSlots はカートのスロット数。itemIdは 0..CartSlots-1 の範囲を取る。
const CartSlots = 300

// Cart はスロット番号（文字列キー "0".."299"）から数量へのマッピング。
// JSONBカラムにそのまま永続化される。
type Cart map[string]int

// NewCart は全スロットが0の新しいカートを返す。
// 登録時とlogout-all時のリセットで使用する。共有テンプレートではなく
// 呼び出しごとに新規マップを生成することで、アカウント間のエイリアシングを防ぐ。
func NewCart() Cart {
	c := make(Cart, CartSlots)
	for i := 0; i < CartSlots; i++ {
		c[strconv.Itoa(i)] = 0
	}
	return c
}

// Quantity は指定スロットの数量を返す。未知のスロットは0。
func (c Cart) Quantity(itemID int) int {
	return c[strconv.Itoa(itemID)]
}

// SlotKey はスロット番号をマップのキー表現に変換する。
func SlotKey(itemID int) string {
	return strconv.Itoa(itemID)
}

// ValidSlot はitemIdがカートのスロット範囲内かどうかを返す。
func ValidSlot(itemID int) bool {
	return itemID >= 0 && itemID < CartSlots
}

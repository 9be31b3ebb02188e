// Package cart はユーザーごとの固定スロットカートの操作を提供する。
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/repository"
)

// Service はカートに関するビジネスロジックを提供する。
type Service struct {
	users repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// Add は指定スロットの数量を1増やして保存する。
// スロット番号が0〜299の範囲外の場合はバリデーションエラーを返す。
func (s *Service) Add(ctx context.Context, userID string, itemID int) (model.Cart, error) {
	return s.adjust(ctx, userID, itemID, +1)
}

// Remove は指定スロットの数量を1減らして保存する。0未満にはならない。
func (s *Service) Remove(ctx context.Context, userID string, itemID int) (model.Cart, error) {
	return s.adjust(ctx, userID, itemID, -1)
}

// Total はカート全体のスロットマップを返す。
func (s *Service) Total(ctx context.Context, userID string) (model.Cart, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Cart, nil
}

func (s *Service) adjust(ctx context.Context, userID string, itemID, delta int) (model.Cart, error) {
	if !model.ValidSlot(itemID) {
		return nil, model.NewBadRequestError(fmt.Sprintf("Invalid item ID: %d", itemID))
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart := user.Cart
	if cart == nil {
		cart = model.NewCart()
	}

	next := cart.Quantity(itemID) + delta
	if next < 0 {
		next = 0
	}
	cart[model.SlotKey(itemID)] = next

	if err := s.users.UpdateCart(ctx, userID, cart); err != nil {
		return nil, fmt.Errorf("failed to persist cart: %w", err)
	}

	slog.Info("cart updated",
		slog.String("user_id", userID),
		slog.Int("item_id", itemID),
		slog.Int("quantity", next),
	)
	return cart, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}
	return user, nil
}

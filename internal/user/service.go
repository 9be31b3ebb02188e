// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/repository"
)

// Profile はクライアントに返すユーザー表現。パスワードは含まない。
type Profile struct {
	ID       string     `json:"id,omitempty"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Cart     model.Cart `json:"cart,omitempty"`
}

// Service はユーザープロフィールのサービス層。
// 一覧・取得・更新・退会のビジネスロジックを提供する。
type Service struct {
	users repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// List は全ユーザーのユーザー名とマスク済みメールアドレスを返す。
// 一覧は未認証でも照会できるため、メールアドレスは常にマスクする。
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, Profile{
			Username: u.Username,
			Email:    MaskEmail(u.Email),
		})
	}
	return profiles, nil
}

// Get は自分自身のレコードを返す。
// 形式不正なIDや存在しないIDはNotFound、他人のIDはUnauthorizedを返す。
func (s *Service) Get(ctx context.Context, requesterID, targetID string) (*Profile, error) {
	if _, err := uuid.Parse(targetID); err != nil {
		return nil, model.NewNotFoundError("User not found")
	}
	if requesterID != targetID {
		return nil, model.NewUnauthorizedError("You can only access your own account")
	}

	u, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	return &Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Cart:     u.Cart,
	}, nil
}

// UpdateUsername は自分自身のユーザー名を変更する。
func (s *Service) UpdateUsername(ctx context.Context, requesterID, targetID, username string) error {
	if _, err := uuid.Parse(targetID); err != nil {
		return model.NewNotFoundError("User not found")
	}
	if requesterID != targetID {
		return model.NewUnauthorizedError("You can only update your own account")
	}

	if err := s.users.UpdateUsername(ctx, targetID, strings.TrimSpace(username)); err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}

	slog.Info("username updated", slog.String("user_id", targetID))
	return nil
}

// Withdraw は自分自身のアカウントを削除する。
// リフレッシュセッションとカートはレコードごと消滅する。
func (s *Service) Withdraw(ctx context.Context, requesterID, targetID string) error {
	if _, err := uuid.Parse(targetID); err != nil {
		return model.NewNotFoundError("User not found")
	}
	if requesterID != targetID {
		return model.NewUnauthorizedError("You can only delete your own account")
	}

	u, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewNotFoundError("User not found")
	}

	if err := s.users.DeleteByID(ctx, targetID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawn", slog.String("user_id", targetID))
	return nil
}

// MaskEmail はメールアドレスのローカル部をマスクする。
// 先頭2文字と末尾1文字を残し、間を*で埋める。短いローカル部は全て*になる。
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 3 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-3) + local[len(local)-1:] + domain
}

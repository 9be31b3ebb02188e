// Package auth はパスワード認証とデュアルトークンセッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/password"
	"github.com/hitoshi/myshopper/internal/repository"
	"github.com/hitoshi/myshopper/internal/token"
)

// TokenPair はログイン・リフレッシュ時に発行されるトークンの組。
type TokenPair struct {
	Access  string
	Refresh string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	admins repository.AdminRepository
	tokens *token.Service
	hasher *password.Hasher
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	admins repository.AdminRepository,
	tokens *token.Service,
	hasher *password.Hasher,
) *Service {
	return &Service{
		users:  users,
		admins: admins,
		tokens: tokens,
		hasher: hasher,
	}
}

// RegisterUser は新規ユーザーを登録する。
// メールアドレスが既に使われている場合は競合エラーを返す。
// パスワードはbcryptダイジェストとして保存され、カートは全スロット0で初期化される。
func (s *Service) RegisterUser(ctx context.Context, username, email, plain string) (*model.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("existing user found with same email address")
	}

	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  digest,
		Cart:      model.NewCart(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered", slog.String("user_id", user.ID))
	return user, nil
}

// LoginUser は資格情報を検証し、アクセス・リフレッシュトークンの組を発行する。
// deviceIDが空の場合は現在時刻から合成する。リフレッシュセッションは
// デバイスを問わず無条件に上書き保存される（同時有効デバイスは1台）。
func (s *Service) LoginUser(ctx context.Context, email, plain, deviceID string) (*model.User, TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, TokenPair{}, model.NewUnauthorizedError("Wrong Email Id")
	}
	if !s.hasher.Verify(plain, user.Password) {
		return nil, TokenPair{}, model.NewUnauthorizedError("Wrong Password")
	}

	if deviceID == "" {
		deviceID = fmt.Sprintf("device_%d", time.Now().UnixMilli())
	}

	pair, session, err := s.issuePair(user, deviceID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	if err := s.users.SaveRefreshSession(ctx, user.ID, session); err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to save refresh session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("device_id", deviceID),
	)
	return user, pair, nil
}

// Refresh は提示されたリフレッシュトークンを検証し、新しいトークンの組に
// 回転させる。保存中のトークンと提示トークンの一致が失効判定を兼ねる。
// 新しいペアのデバイス識別子は検証済みクレームから引き継ぐ。
// 回転の永続化は保存トークンとの比較付きUPDATEで行い、並行リフレッシュの
// 片方だけが成功する。
func (s *Service) Refresh(ctx context.Context, presented string) (*model.User, TokenPair, error) {
	claims, err := s.tokens.Verify(presented, token.KindRefresh)
	if err != nil {
		switch err {
		case token.ErrTokenExpired:
			return nil, TokenPair{}, model.NewTokenExpiredError()
		default:
			return nil, TokenPair{}, model.NewUnauthorizedError("Invalid refresh token")
		}
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, TokenPair{}, model.NewUnauthorizedError("Invalid refresh token")
	}
	if !user.RefreshSession.Active() || user.RefreshSession.Token != presented {
		slog.Warn("revoked refresh token presented", slog.String("user_id", user.ID))
		return nil, TokenPair{}, model.NewUnauthorizedError("Refresh token has been revoked")
	}

	pair, session, err := s.issuePair(user, claims.DeviceID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	rotated, err := s.users.RotateRefreshSession(ctx, user.ID, presented, session)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to rotate refresh session: %w", err)
	}
	if !rotated {
		// 読み出しと更新の間に別のリフレッシュが先行した場合
		return nil, TokenPair{}, model.NewUnauthorizedError("Refresh token has been revoked")
	}

	slog.Info("refresh token rotated",
		slog.String("user_id", user.ID),
		slog.String("device_id", claims.DeviceID),
	)
	return user, pair, nil
}

// Logout は提示されたリフレッシュトークンに対応するセッションをクリアし、
// 対象ユーザー名を返す。トークンの署名検証は行わず、保存中のトークンとの
// 一致のみを要求する（期限切れトークンでもログアウトは成立させる）。
func (s *Service) Logout(ctx context.Context, presented string) (string, error) {
	userID, err := s.decodeAccountID(presented)
	if err != nil {
		return "", err
	}

	username, err := s.users.ClearRefreshSession(ctx, userID, presented)
	if err != nil {
		return "", fmt.Errorf("failed to clear refresh session: %w", err)
	}
	if username == "" {
		return "", model.NewUnauthorizedError("Invalid refresh token")
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return username, nil
}

// LogoutAll はLogoutに加えてカートを全スロット0に初期化する。
func (s *Service) LogoutAll(ctx context.Context, presented string) (string, error) {
	userID, err := s.decodeAccountID(presented)
	if err != nil {
		return "", err
	}

	username, err := s.users.ClearSessionAndResetCart(ctx, userID, presented, model.NewCart())
	if err != nil {
		return "", fmt.Errorf("failed to clear session: %w", err)
	}
	if username == "" {
		return "", model.NewUnauthorizedError("Invalid refresh token")
	}

	slog.Info("user logged out from all devices", slog.String("user_id", userID))
	return username, nil
}

// ChangeUserPassword はメールアドレスで特定したユーザーのパスワードを更新する。
// ダイジェスト化は保存直前の一度だけ行う。
func (s *Service) ChangeUserPassword(ctx context.Context, email, plain string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("User not found")
	}

	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("user password changed", slog.String("user_id", user.ID))
	return nil
}

// RegisterAdmin は新規管理者を登録する。
func (s *Service) RegisterAdmin(ctx context.Context, username, email, plain string) (*model.Admin, error) {
	existing, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing admin: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("existing admin found with same email address")
	}

	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	admin := &model.Admin{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  digest,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("new admin registered", slog.String("admin_id", admin.ID))
	return admin, nil
}

// LoginAdmin は管理者の資格情報を検証する。トークンは発行しない。
func (s *Service) LoginAdmin(ctx context.Context, email, plain string) (*model.Admin, error) {
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	if admin == nil {
		return nil, model.NewUnauthorizedError("Wrong Email Id")
	}
	if !s.hasher.Verify(plain, admin.Password) {
		return nil, model.NewUnauthorizedError("Wrong Password")
	}

	slog.Info("admin logged in", slog.String("admin_id", admin.ID))
	return admin, nil
}

// ChangeAdminPassword はメールアドレスで特定した管理者のパスワードを更新する。
func (s *Service) ChangeAdminPassword(ctx context.Context, email, plain string) error {
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find admin: %w", err)
	}
	if admin == nil {
		return model.NewNotFoundError("Admin not found")
	}

	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.admins.UpdatePassword(ctx, admin.ID, digest); err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}

	slog.Info("admin password changed", slog.String("admin_id", admin.ID))
	return nil
}

// issuePair はアクセス・リフレッシュトークンを発行し、永続化用の
// セッションレコードを構築する。
func (s *Service) issuePair(user *model.User, deviceID string) (TokenPair, model.RefreshSession, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Username, deviceID)
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	now := time.Now()
	session := model.RefreshSession{
		Token:     refresh,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshLifetime()),
	}
	return TokenPair{Access: access, Refresh: refresh}, session, nil
}

// decodeAccountID は署名検証なしでトークンからアカウントIDを取り出す。
// ログアウト経路専用であり、認可判定には使わない。
func (s *Service) decodeAccountID(presented string) (string, error) {
	if presented == "" {
		return "", model.NewUnauthorizedError("Refresh token is required")
	}
	claims := token.DecodeUnchecked(presented)
	if claims == nil || claims.UserID == "" {
		return "", model.NewUnauthorizedError("Invalid refresh token")
	}
	return claims.UserID, nil
}

// Package token はアクセス／リフレッシュの二種トークンの発行と検証を提供する。
//
// 各トークン種別は独立したシークレットで署名される。検証時は期待する種別の
// シークレットで署名を確認した上で、クレーム内のkindが期待値と一致することを
// 要求する。これにより、署名が有効なリフレッシュトークンをアクセストークン
// として使い回す（またはその逆の）取り違え攻撃を防ぐ。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind はトークン種別を表す。
type Kind string

const (
	// KindAccess は個々のリクエストを認可する短命トークン。
	KindAccess Kind = "access"
	// KindRefresh はアクセストークンを再発行するための長命トークン。
	// 発行された文字列はストア上のレコードと完全一致する場合のみ有効。
	KindRefresh Kind = "refresh"
)

// 検証失敗の分類。クライアントはこれを見てリフレッシュするか再ログイン
// するかを選択する。
var (
	// ErrTokenExpired は署名は有効だが有効期限が切れている。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名不正・形式不正など。
	ErrTokenInvalid = errors.New("invalid token")
	// ErrWrongTokenKind は署名が有効でも種別が期待と異なる。
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// Claims はアクセス／リフレッシュ共通のクレーム構造。
// DeviceIDはリフレッシュトークンにのみ入る。
type Claims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	DeviceID string `json:"device_id,omitempty"`
	Kind     Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Config はトークンサービスの設定。
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

// Service はトークンの発行と検証を行う。
type Service struct {
	config Config
}

// NewService はServiceを生成する。
// シークレットが空、または両種別で同一の場合はエラーを返す。
func NewService(cfg Config) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	// ゼロ値はデフォルトにフォールバックする。負値はそのまま通す
	// （期限切れトークンを作るテストで使用するため）。
	if cfg.AccessLifetime == 0 {
		cfg.AccessLifetime = 2 * time.Hour
	}
	if cfg.RefreshLifetime == 0 {
		cfg.RefreshLifetime = 7 * 24 * time.Hour
	}
	return &Service{config: cfg}, nil
}

// AccessLifetime は設定されたアクセストークンの有効期間を返す。
// Cookieのmax-age算出に使用する。
func (s *Service) AccessLifetime() time.Duration {
	return s.config.AccessLifetime
}

// RefreshLifetime は設定されたリフレッシュトークンの有効期間を返す。
func (s *Service) RefreshLifetime() time.Duration {
	return s.config.RefreshLifetime
}

// IssueAccess はアクセストークンを発行する。
func (s *Service) IssueAccess(userID, name string) (string, error) {
	return s.issue(Claims{
		UserID: userID,
		Name:   name,
		Kind:   KindAccess,
	}, s.config.AccessSecret, s.config.AccessLifetime)
}

// IssueRefresh は指定デバイスに紐づくリフレッシュトークンを発行する。
func (s *Service) IssueRefresh(userID, name, deviceID string) (string, error) {
	return s.issue(Claims{
		UserID:   userID,
		Name:     name,
		DeviceID: deviceID,
		Kind:     KindRefresh,
	}, s.config.RefreshSecret, s.config.RefreshLifetime)
}

func (s *Service) issue(claims Claims, secret []byte, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify はトークンを期待種別として検証し、クレームを返す。
// 失敗はErrTokenExpired、ErrTokenInvalid、ErrWrongTokenKindのいずれかに
// 分類される。種別不一致の検査は署名検証の後に行うため、署名が有効でも
// kindが異なれば必ずErrWrongTokenKindになる。
func (s *Service) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret := s.config.AccessSecret
	if kind == KindRefresh {
		secret = s.config.RefreshSecret
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}

	return claims, nil
}

// DecodeUnchecked は署名を検証せずにクレームを取り出す。
// 返り値のクレームで操作を認可してはならない。どのみちトークンを無効化する
// ログアウト経路と、期限接近シグナルの算出でのみ使用する。
// 解析できない場合はnilを返す。
func DecodeUnchecked(tokenStr string) *Claims {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}
	return claims
}

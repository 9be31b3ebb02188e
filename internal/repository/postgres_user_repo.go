package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/myshopper/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, password, cart,
	refresh_token, refresh_device_id, refresh_created_at, refresh_expires_at,
	created_at, updated_at`

// scanUser は1行をmodel.Userに変換する。リフレッシュセッションの
// NULLカラムはゼロ値（セッションなし）として読み出す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var cartJSON []byte
	var rToken, rDevice sql.NullString
	var rCreated, rExpires sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &cartJSON,
		&rToken, &rDevice, &rCreated, &rExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if err := json.Unmarshal(cartJSON, &user.Cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	if rToken.Valid {
		user.RefreshSession = model.RefreshSession{
			Token:    rToken.String,
			DeviceID: rDevice.String,
		}
		if rCreated.Valid {
			user.RefreshSession.CreatedAt = rCreated.Time
		}
		if rExpires.Valid {
			user.RefreshSession.ExpiresAt = rExpires.Time
		}
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	cartJSON, err := json.Marshal(user.Cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, cart, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.Password, cartJSON,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// ListAll は全ユーザーのusername/emailを返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, email FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePassword は保存済みダイジェストを差し替える。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id, digest string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password = $2, updated_at = now() WHERE id = $1`,
		id, digest,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// UpdateUsername はユーザー名を更新する。
func (r *PostgresUserRepo) UpdateUsername(ctx context.Context, id, username string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, updated_at = now() WHERE id = $1`,
		id, username,
	)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// SaveRefreshSession はリフレッシュセッションを無条件に上書き保存する。
// デバイスを問わず前回のセッションレコードが失効する（同時有効デバイスは1台）。
func (r *PostgresUserRepo) SaveRefreshSession(ctx context.Context, userID string, session model.RefreshSession) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			refresh_token = $2,
			refresh_device_id = $3,
			refresh_created_at = $4,
			refresh_expires_at = $5,
			updated_at = now()
		 WHERE id = $1`,
		userID, session.Token, session.DeviceID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh session: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// RotateRefreshSession は保存中のトークンがpresentedと一致する場合のみ
// 新セッションに置き換える。WHERE句での等価比較により、並行する2つの
// リフレッシュ要求のうち片方だけが成功する（read-modify-writeの競合排除）。
func (r *PostgresUserRepo) RotateRefreshSession(ctx context.Context, userID, presented string, session model.RefreshSession) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			refresh_token = $3,
			refresh_device_id = $4,
			refresh_created_at = $5,
			refresh_expires_at = $6,
			updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`,
		userID, presented, session.Token, session.DeviceID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearRefreshSession は保存中のトークンが一致する場合のみセッションを
// クリアし、対象ユーザー名を返す。不一致・不在の場合は空文字列を返す。
func (r *PostgresUserRepo) ClearRefreshSession(ctx context.Context, userID, presented string) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET
			refresh_token = NULL,
			refresh_device_id = NULL,
			refresh_created_at = NULL,
			refresh_expires_at = NULL,
			updated_at = now()
		 WHERE id = $1 AND refresh_token = $2
		 RETURNING username`,
		userID, presented,
	).Scan(&username)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to clear refresh session: %w", err)
	}
	return username, nil
}

// ClearSessionAndResetCart はセッションクリアに加えカートを初期状態に戻す。
func (r *PostgresUserRepo) ClearSessionAndResetCart(ctx context.Context, userID, presented string, cart model.Cart) (string, error) {
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart: %w", err)
	}

	var username string
	err = r.db.QueryRowContext(ctx,
		`UPDATE users SET
			refresh_token = NULL,
			refresh_device_id = NULL,
			refresh_created_at = NULL,
			refresh_expires_at = NULL,
			cart = $3,
			updated_at = now()
		 WHERE id = $1 AND refresh_token = $2
		 RETURNING username`,
		userID, presented, cartJSON,
	).Scan(&username)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to clear session and reset cart: %w", err)
	}
	return username, nil
}

// UpdateCart はカートを保存する。
func (r *PostgresUserRepo) UpdateCart(ctx context.Context, userID string, cart model.Cart) error {
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET cart = $2, updated_at = now() WHERE id = $1`,
		userID, cartJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// requireRowAffected は更新対象が存在しなかった場合にエラーを返す。
func requireRowAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)

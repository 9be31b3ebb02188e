package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/myshopper/internal/model"
)

// PostgresAdminRepo はPostgreSQLを使用した管理者リポジトリ。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

func scanAdmin(row *sql.Row) (*model.Admin, error) {
	admin := &model.Admin{}
	err := row.Scan(
		&admin.ID, &admin.Username, &admin.Email, &admin.Password,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan admin: %w", err)
	}
	return admin, nil
}

// FindByID は指定IDの管理者を取得する。見つからない場合はnilを返す。
func (r *PostgresAdminRepo) FindByID(ctx context.Context, id string) (*model.Admin, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at, updated_at
		 FROM admins WHERE id = $1`, id)
	return scanAdmin(row)
}

// FindByEmail はメールアドレスで管理者を検索する。見つからない場合はnilを返す。
func (r *PostgresAdminRepo) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at, updated_at
		 FROM admins WHERE email = $1`, email)
	return scanAdmin(row)
}

// Create は管理者を作成する。
func (r *PostgresAdminRepo) Create(ctx context.Context, admin *model.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (id, username, email, password, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		admin.ID, admin.Username, admin.Email, admin.Password,
		admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", err)
	}
	return nil
}

// ListAll は全管理者のusername/emailを返す。
func (r *PostgresAdminRepo) ListAll(ctx context.Context) ([]*model.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, email FROM admins ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*model.Admin
	for rows.Next() {
		a := &model.Admin{}
		if err := rows.Scan(&a.ID, &a.Username, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan admin row: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// UpdatePassword は保存済みダイジェストを差し替える。
func (r *PostgresAdminRepo) UpdatePassword(ctx context.Context, id, digest string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE admins SET password = $2, updated_at = now() WHERE id = $1`,
		id, digest,
	)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return requireRowAffected(result, "admin", id)
}

var _ AdminRepository = (*PostgresAdminRepo)(nil)

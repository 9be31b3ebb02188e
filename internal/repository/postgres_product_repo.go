package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/myshopper/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, product_id, product_title, category,
	new_price, old_price, available, product_image, image_content_type, created_at`

// Create は商品を登録する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, product_id, product_title, category,
			new_price, old_price, available, product_image, image_content_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.ProductID, product.Title, product.Category,
		product.NewPrice, product.OldPrice, product.Available,
		product.Image, product.ImageContentType, product.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// NextProductID は次に割り当てる連番IDを返す。商品が存在しない場合は1。
func (r *PostgresProductRepo) NextProductID(ctx context.Context) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(product_id), 0) + 1 FROM products`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next product ID: %w", err)
	}
	return next, nil
}

// ListAll は全商品を登録順に返す。
func (r *PostgresProductRepo) ListAll(ctx context.Context) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListNewest は登録日時の新しい順にn件を返す。
func (r *PostgresProductRepo) ListNewest(ctx context.Context, n int) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list newest products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// FindByProductID は連番IDで商品を検索する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByProductID(ctx context.Context, productID int) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE product_id = $1`, productID)
	product := &model.Product{}
	err := scanProduct(row.Scan, product)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

// DeleteByProductID は連番IDで商品を削除する。削除された場合trueを返す。
func (r *PostgresProductRepo) DeleteByProductID(ctx context.Context, productID int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE product_id = $1`, productID)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func scanProduct(scan func(...any) error, p *model.Product) error {
	return scan(
		&p.ID, &p.ProductID, &p.Title, &p.Category,
		&p.NewPrice, &p.OldPrice, &p.Available,
		&p.Image, &p.ImageContentType, &p.CreatedAt,
	)
}

func collectProducts(rows *sql.Rows) ([]*model.Product, error) {
	var products []*model.Product
	for rows.Next() {
		p := &model.Product{}
		if err := scanProduct(rows.Scan, p); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

var _ ProductRepository = (*PostgresProductRepo)(nil)

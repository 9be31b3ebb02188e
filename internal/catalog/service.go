// Package catalog は商品カタログの登録・一覧・削除を提供する。
package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/repository"
)

// NewStocksCount は新着一覧として返す商品数。
const NewStocksCount = 8

// ProductView はクライアントに返す商品表現。画像はdata URLとして埋め込む。
type ProductView struct {
	ProductID int     `json:"id"`
	Title     string  `json:"product_title"`
	Category  string  `json:"category"`
	NewPrice  float64 `json:"new_price"`
	OldPrice  float64 `json:"old_price"`
	Available bool    `json:"available"`
	Image     string  `json:"product_image,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Service はカタログに関するビジネスロジックを提供する。
type Service struct {
	products repository.ProductRepository
}

// NewService はServiceを生成する。
func NewService(products repository.ProductRepository) *Service {
	return &Service{products: products}
}

// AddProduct は商品を登録する。連番のproduct_idは既存の最大値+1を割り当てる。
// 画像バイト列とContent-Typeは受け取ったまま保存する。
func (s *Service) AddProduct(ctx context.Context, title, category string, newPrice, oldPrice float64, image []byte, contentType string) (*model.Product, error) {
	if !model.ValidCategory(category) {
		return nil, model.NewBadRequestError(fmt.Sprintf("Invalid category: %s", category))
	}

	nextID, err := s.products.NextProductID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate product ID: %w", err)
	}

	product := &model.Product{
		ID:               uuid.New().String(),
		ProductID:        nextID,
		Title:            title,
		Category:         category,
		NewPrice:         newPrice,
		OldPrice:         oldPrice,
		Available:        true,
		Image:            image,
		ImageContentType: contentType,
		CreatedAt:        time.Now(),
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	slog.Info("product added",
		slog.Int("product_id", product.ProductID),
		slog.String("category", product.Category),
	)
	return product, nil
}

// ListProducts は全商品を返す。
func (s *Service) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return toViews(products), nil
}

// GetProduct は連番IDで商品を1件返す。存在しない場合はNotFoundを返す。
func (s *Service) GetProduct(ctx context.Context, productID int) (*ProductView, error) {
	product, err := s.products.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("Product not found: %d", productID))
	}
	view := toView(product)
	return &view, nil
}

// NewStocks は登録の新しい順に最大8件の商品を返す。
func (s *Service) NewStocks(ctx context.Context) ([]ProductView, error) {
	products, err := s.products.ListNewest(ctx, NewStocksCount)
	if err != nil {
		return nil, fmt.Errorf("failed to list newest products: %w", err)
	}
	return toViews(products), nil
}

// RemoveProduct は連番IDで商品を削除する。存在しない場合はNotFoundを返す。
func (s *Service) RemoveProduct(ctx context.Context, productID int) error {
	deleted, err := s.products.DeleteByProductID(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError(fmt.Sprintf("Product not found: %d", productID))
	}

	slog.Info("product removed", slog.Int("product_id", productID))
	return nil
}

func toViews(products []*model.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, toView(p))
	}
	return views
}

func toView(p *model.Product) ProductView {
	return ProductView{
		ProductID: p.ProductID,
		Title:     p.Title,
		Category:  p.Category,
		NewPrice:  p.NewPrice,
		OldPrice:  p.OldPrice,
		Available: p.Available,
		Image:     imageDataURL(p),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// imageDataURL は保存済み画像をdata URLに変換する。画像なしは空文字列。
func imageDataURL(p *model.Product) string {
	if len(p.Image) == 0 {
		return ""
	}
	mime := p.ImageContentType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(p.Image))
}

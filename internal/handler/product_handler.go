package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/myshopper/internal/catalog"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/security"
)

// 商品画像アップロードの上限。DBにbyteaで保存するため控えめにする。
const maxProductImageBytes = 5 << 20

// CatalogServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	AddProduct(ctx context.Context, title, category string, newPrice, oldPrice float64, image []byte, contentType string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]catalog.ProductView, error)
	NewStocks(ctx context.Context) ([]catalog.ProductView, error)
	GetProduct(ctx context.Context, productID int) (*catalog.ProductView, error)
	RemoveProduct(ctx context.Context, productID int) error
}

// ProductHandler は商品カタログのHTTPハンドラー。
type ProductHandler struct {
	catalogService CatalogServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(catalogService CatalogServiceInterface) *ProductHandler {
	return &ProductHandler{catalogService: catalogService}
}

// AddProduct はmultipart/form-dataで商品を登録する。
// POST /api/product/addproduct
func (h *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProductImageBytes); err != nil {
		handleServiceError(w, model.NewBadRequestError("Invalid multipart form"))
		return
	}

	title := r.FormValue("product_title")
	category := r.FormValue("product_category")
	newPrice, newErr := strconv.ParseFloat(r.FormValue("new_price"), 64)
	oldPrice, oldErr := strconv.ParseFloat(r.FormValue("old_price"), 64)
	if newErr != nil || oldErr != nil {
		handleServiceError(w, model.NewBadRequestError("Prices must be numeric"))
		return
	}

	if err := security.NewValidator().
		ProductTitle(title).
		ProductCategory(category).
		ProductPrices(newPrice, oldPrice).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	var image []byte
	contentType := ""
	if file, header, err := r.FormFile("product_image"); err == nil {
		defer file.Close()
		image, err = io.ReadAll(io.LimitReader(file, maxProductImageBytes))
		if err != nil {
			handleServiceError(w, model.NewBadRequestError("Failed to read product image"))
			return
		}
		contentType = header.Header.Get("Content-Type")
	}

	if _, err := h.catalogService.AddProduct(r.Context(), title, category, newPrice, oldPrice, image, contentType); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Product added successfully")
}

// AllProducts は全商品を返す。
// GET /api/product/allproducts
func (h *ProductHandler) AllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogService.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// NewStocks は新着商品を返す。
// GET /api/product/newstocks
func (h *ProductHandler) NewStocks(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogService.NewStocks(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct は指定IDの商品を返す。
// GET /api/product/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, model.NewBadRequestError("Product id must be numeric"))
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// RemoveProduct は指定IDの商品を削除する。
// DELETE /api/product/removeproduct/{id}
func (h *ProductHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, model.NewBadRequestError("Product id must be numeric"))
		return
	}

	if err := h.catalogService.RemoveProduct(r.Context(), productID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product removed successfully")
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/myshopper/internal/model"
	"github.com/hitoshi/myshopper/internal/security"
	"github.com/hitoshi/myshopper/internal/user"
)

// AdminAuthServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminAuthServiceInterface interface {
	RegisterAdmin(ctx context.Context, username, email, plain string) (*model.Admin, error)
	LoginAdmin(ctx context.Context, email, plain string) (*model.Admin, error)
	ChangeAdminPassword(ctx context.Context, email, plain string) error
}

// AdminDirectoryInterface は管理者一覧・照会に使うリポジトリの一部。
type AdminDirectoryInterface interface {
	ListAll(ctx context.Context) ([]*model.Admin, error)
	FindByID(ctx context.Context, id string) (*model.Admin, error)
}

// AdminHandler は管理者関連のHTTPハンドラー。
// 管理者ログインはトークンを発行しない（資格情報の確認のみ）。
type AdminHandler struct {
	authService AdminAuthServiceInterface
	directory   AdminDirectoryInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(authService AdminAuthServiceInterface, directory AdminDirectoryInterface) *AdminHandler {
	return &AdminHandler{authService: authService, directory: directory}
}

// adminProfile は一覧・照会レスポンスの管理者表現。
type adminProfile struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Register は新規管理者を登録する。
// POST /api/admin/register
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Username(req.Username).
		Email(email).
		AdminPassword(req.Password).
		ConfirmPassword(req.Password, req.ConfirmPassword).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := h.authService.RegisterAdmin(r.Context(), req.Username, email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Admin registered successfully")
}

// Login は管理者の資格情報を検証する。
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Email(email).
		RequiredPassword(req.Password).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	admin, err := h.authService.LoginAdmin(r.Context(), email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Logged in successfully",
		"username": admin.Username,
	})
}

// ChangePassword は管理者パスワードを更新する。
// POST /api/admin/change-password
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	email := security.NormalizeEmail(req.Email)
	if err := security.NewValidator().
		Email(email).
		AdminPassword(req.Password).
		ConfirmPassword(req.Password, req.ConfirmPassword).
		Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.authService.ChangeAdminPassword(r.Context(), email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password changed successfully")
}

// ListAdmins は全管理者をマスク済みメールアドレス付きで返す。
// GET /api/admin/
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.directory.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	profiles := make([]adminProfile, 0, len(admins))
	for _, a := range admins {
		profiles = append(profiles, adminProfile{
			Username: a.Username,
			Email:    user.MaskEmail(a.Email),
		})
	}
	writeJSON(w, http.StatusOK, profiles)
}

// GetAdmin は指定IDの管理者を返す。形式不正なIDはNotFound。
// GET /api/admin/{id}
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		handleServiceError(w, model.NewNotFoundError("Admin not found"))
		return
	}

	admin, err := h.directory.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if admin == nil {
		handleServiceError(w, model.NewNotFoundError("Admin not found"))
		return
	}

	writeJSON(w, http.StatusOK, adminProfile{
		ID:       admin.ID,
		Username: admin.Username,
		Email:    user.MaskEmail(admin.Email),
	})
}

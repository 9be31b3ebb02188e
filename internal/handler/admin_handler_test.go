package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/myshopper/internal/model"
)

// --- モック定義 ---

// mockAdminAuthService はAdminAuthServiceInterfaceのモック実装。
type mockAdminAuthService struct {
	registerAdminFn       func(ctx context.Context, username, email, plain string) (*model.Admin, error)
	loginAdminFn          func(ctx context.Context, email, plain string) (*model.Admin, error)
	changeAdminPasswordFn func(ctx context.Context, email, plain string) error
}

func (m *mockAdminAuthService) RegisterAdmin(ctx context.Context, username, email, plain string) (*model.Admin, error) {
	if m.registerAdminFn != nil {
		return m.registerAdminFn(ctx, username, email, plain)
	}
	return &model.Admin{Username: username, Email: email}, nil
}

func (m *mockAdminAuthService) LoginAdmin(ctx context.Context, email, plain string) (*model.Admin, error) {
	if m.loginAdminFn != nil {
		return m.loginAdminFn(ctx, email, plain)
	}
	return &model.Admin{Username: "root", Email: email}, nil
}

func (m *mockAdminAuthService) ChangeAdminPassword(ctx context.Context, email, plain string) error {
	if m.changeAdminPasswordFn != nil {
		return m.changeAdminPasswordFn(ctx, email, plain)
	}
	return nil
}

// mockAdminDirectory はAdminDirectoryInterfaceのモック実装。
type mockAdminDirectory struct {
	listAllFn  func(ctx context.Context) ([]*model.Admin, error)
	findByIDFn func(ctx context.Context, id string) (*model.Admin, error)
}

func (m *mockAdminDirectory) ListAll(ctx context.Context) ([]*model.Admin, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminDirectory) FindByID(ctx context.Context, id string) (*model.Admin, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func newTestAdminHandler(authSvc *mockAdminAuthService, dir *mockAdminDirectory) *AdminHandler {
	if authSvc == nil {
		authSvc = &mockAdminAuthService{}
	}
	if dir == nil {
		dir = &mockAdminDirectory{}
	}
	return NewAdminHandler(authSvc, dir)
}

// --- POST /api/admin/register テスト ---

func TestAdminHandler_Register_Success(t *testing.T) {
	h := newTestAdminHandler(nil, nil)

	req := jsonRequest(t, http.MethodPost, "/api/admin/register", map[string]string{
		"username":         "root-admin",
		"email":            "admin@example.com",
		"password":         "Admin1@pass",
		"confirm_password": "Admin1@pass",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestAdminHandler_Register_RejectsWeakPassword(t *testing.T) {
	// ユーザーなら通るがadminのパスワード規則（8文字以上・大文字必須）は満たさない
	h := newTestAdminHandler(nil, nil)

	req := jsonRequest(t, http.MethodPost, "/api/admin/register", map[string]string{
		"username":         "root-admin",
		"email":            "admin@example.com",
		"password":         "pass1@w",
		"confirm_password": "pass1@w",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- POST /api/admin/login テスト ---

func TestAdminHandler_Login_Success_NoCookies(t *testing.T) {
	h := newTestAdminHandler(nil, nil)

	req := jsonRequest(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1@pass",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	// 管理者ログインはトークンを発行しない
	if len(w.Result().Cookies()) != 0 {
		t.Error("管理者ログインでクッキーを設定してはいけない")
	}
	body := decodeBody(t, w)
	if body["username"] != "root" {
		t.Errorf("username = %v, want root", body["username"])
	}
}

func TestAdminHandler_Login_WrongCredentials(t *testing.T) {
	svc := &mockAdminAuthService{
		loginAdminFn: func(context.Context, string, string) (*model.Admin, error) {
			return nil, model.NewUnauthorizedError("Wrong Password")
		},
	}
	h := newTestAdminHandler(svc, nil)

	req := jsonRequest(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Wrong1@pass",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- 一覧・照会テスト ---

func TestAdminHandler_ListAdmins_MasksEmails(t *testing.T) {
	dir := &mockAdminDirectory{
		listAllFn: func(context.Context) ([]*model.Admin, error) {
			return []*model.Admin{
				{ID: "admin-1", Username: "root", Email: "rootadmin@example.com"},
			}, nil
		},
	}
	h := newTestAdminHandler(nil, dir)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/", nil)
	w := httptest.NewRecorder()
	h.ListAdmins(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []adminProfile
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("パースに失敗: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("件数 = %d, want 1", len(got))
	}
	if got[0].Email != "ro******n@example.com" {
		t.Errorf("マスク済みメール = %q, want ro******n@example.com", got[0].Email)
	}
	if got[0].ID != "" {
		t.Error("一覧レスポンスにIDを含めない")
	}
}

func TestAdminHandler_GetAdmin_NotFound(t *testing.T) {
	dir := &mockAdminDirectory{
		findByIDFn: func(context.Context, string) (*model.Admin, error) {
			return nil, nil
		},
	}
	h := newTestAdminHandler(nil, dir)

	req := withURLParam(
		httptest.NewRequest(http.MethodGet, "/api/admin/7b6a1f9c-9d1e-4f3a-b1c2-0d4e5f6a7b8c", nil),
		"id", "7b6a1f9c-9d1e-4f3a-b1c2-0d4e5f6a7b8c")
	w := httptest.NewRecorder()
	h.GetAdmin(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAdminHandler_GetAdmin_MalformedID(t *testing.T) {
	// UUIDとして解釈できないIDはDBに問い合わせず404を返す
	dir := &mockAdminDirectory{
		findByIDFn: func(_ context.Context, id string) (*model.Admin, error) {
			t.Errorf("形式不正なID %q でFindByIDが呼ばれた", id)
			return nil, errors.New(`pq: invalid input syntax for type uuid: "not-a-uuid"`)
		},
	}
	h := newTestAdminHandler(nil, dir)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/admin/not-a-uuid", nil), "id", "not-a-uuid")
	w := httptest.NewRecorder()
	h.GetAdmin(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

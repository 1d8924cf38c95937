package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/student"
)

// StudentServiceInterface は受講生管理ハンドラーが必要とするサービスインターフェース。
type StudentServiceInterface interface {
	List(ctx context.Context) ([]student.Account, error)
	Create(ctx context.Context, in student.Input) (*student.Account, error)
	Update(ctx context.Context, id string, in student.Input) (*student.Account, error)
	Delete(ctx context.Context, id string) error
}

// StudentHandler は受講生アカウント管理のHTTPハンドラー。
type StudentHandler struct {
	service StudentServiceInterface
}

// NewStudentHandler はStudentHandlerを生成する。
func NewStudentHandler(service StudentServiceInterface) *StudentHandler {
	return &StudentHandler{service: service}
}

type studentListResponse struct {
	Students []student.Account `json:"students"`
}

// List GET /api/admin/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, studentListResponse{Students: accounts})
}

// Create は受講生アカウントを作成する。ユーザー名の重複は409を返す。
// POST /api/admin/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in student.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	account, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Update PUT /api/admin/students/{id}
func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in student.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	account, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Delete は受講生アカウントを削除し、そのセッションも無効にする。
// DELETE /api/admin/students/{id}
func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

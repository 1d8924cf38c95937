package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/notice"
)

// NoticeServiceInterface は公告ハンドラーが必要とするサービスインターフェース。
type NoticeServiceInterface interface {
	ListForStudent(ctx context.Context, viewer *model.User) (*notice.StudentView, error)
	List(ctx context.Context) ([]model.Notice, error)
	Create(ctx context.Context, in notice.Input) (*model.Notice, error)
	Update(ctx context.Context, id string, in notice.Input) (*model.Notice, error)
	Delete(ctx context.Context, id string) error
}

// NoticeImporter はフィードから公告を取り込む。
type NoticeImporter interface {
	Import(ctx context.Context, feedURL string) (*notice.ImportResult, error)
}

// NoticeHandler は公告のHTTPハンドラー。
type NoticeHandler struct {
	service        NoticeServiceInterface
	importer       NoticeImporter
	defaultFeedURL string
}

// NewNoticeHandler はNoticeHandlerを生成する。
// defaultFeedURLは取り込みリクエストでURLが省略された場合に使う。
func NewNoticeHandler(service NoticeServiceInterface, importer NoticeImporter, defaultFeedURL string) *NoticeHandler {
	return &NoticeHandler{service: service, importer: importer, defaultFeedURL: defaultFeedURL}
}

type noticeListResponse struct {
	Notices []model.Notice `json:"notices"`
}

type importRequest struct {
	URL string `json:"url"`
}

// ListForStudent は受講生に見える公告を全体・学校別に分けて返す。
// GET /api/notices
func (h *NoticeHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	view, err := h.service.ListForStudent(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List は全公告を新しい順に返す。
// GET /api/admin/notices
func (h *NoticeHandler) List(w http.ResponseWriter, r *http.Request) {
	notices, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noticeListResponse{Notices: notices})
}

// Create は公告を登録する。
// POST /api/admin/notices
func (h *NoticeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in notice.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	n, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Update は公告を更新する。
// PUT /api/admin/notices/{id}
func (h *NoticeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in notice.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	n, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Delete は公告を削除する。
// DELETE /api/admin/notices/{id}
func (h *NoticeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import はフィードのエントリを全体公告として取り込む。
// POST /api/admin/notices/import
func (h *NoticeHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	feedURL := strings.TrimSpace(req.URL)
	if feedURL == "" {
		feedURL = h.defaultFeedURL
	}
	if feedURL == "" {
		handleServiceError(w, model.NewValidationError("가져올 피드 URL을 입력해주세요.",
			model.FieldError{Field: "url", Error: "required"}))
		return
	}

	result, err := h.importer.Import(r.Context(), feedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

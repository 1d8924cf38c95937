package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/qna"
)

// QnAServiceInterface はQ&Aハンドラーが必要とするサービスインターフェース。
type QnAServiceInterface interface {
	Ask(ctx context.Context, student *model.User, in qna.AskInput) (*model.QnAItem, error)
	ListForStudent(ctx context.Context) ([]model.QnAItem, error)
	ListForAdmin(ctx context.Context) (*qna.AdminView, error)
	Answer(ctx context.Context, id string, in qna.AnswerInput) (*model.QnAItem, error)
	Delete(ctx context.Context, id string) error
}

// QnAHandler はQ&A掲示板のHTTPハンドラー。
type QnAHandler struct {
	service QnAServiceInterface
}

// NewQnAHandler はQnAHandlerを生成する。
func NewQnAHandler(service QnAServiceInterface) *QnAHandler {
	return &QnAHandler{service: service}
}

type qnaListResponse struct {
	Questions []model.QnAItem `json:"questions"`
}

// ListForStudent は質問一覧を質問者名を伏せて返す。
// GET /api/qna
func (h *QnAHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListForStudent(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qnaListResponse{Questions: items})
}

// Ask は匿名の質問を登録する。
// POST /api/qna
func (h *QnAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in qna.AskInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	item, err := h.service.Ask(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ListForAdmin は未回答・回答済みに分けた質問一覧を返す。
// GET /api/admin/qna
func (h *QnAHandler) ListForAdmin(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ListForAdmin(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Answer は質問に回答する。既存の回答は上書きする。
// PUT /api/admin/qna/{id}/answer
func (h *QnAHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var in qna.AnswerInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	item, err := h.service.Answer(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete は質問を削除する。
// DELETE /api/admin/qna/{id}
func (h *QnAHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

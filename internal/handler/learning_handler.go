package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/learning"
	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/visibility"
)

// LearningServiceInterface は学習記録ハンドラーが必要とするサービスインターフェース。
type LearningServiceInterface interface {
	List(ctx context.Context, q visibility.LearningQuery) (*learning.Data, error)
	Export(ctx context.Context, q visibility.LearningQuery) (*learning.Export, string, error)
	ForStudent(ctx context.Context, student *model.User, season string) (*learning.Summary, error)
	Seasons(ctx context.Context) ([]string, error)
	RecordTestResult(ctx context.Context, in learning.TestResultInput) (*model.TestResult, error)
	RecordHomework(ctx context.Context, in learning.HomeworkInput) (*model.Homework, error)
	DeleteTestResult(ctx context.Context, id string) error
	DeleteHomework(ctx context.Context, id string) error
}

// LearningHandler はテスト結果・課題記録のHTTPハンドラー。
type LearningHandler struct {
	service LearningServiceInterface
}

// NewLearningHandler はLearningHandlerを生成する。
func NewLearningHandler(service LearningServiceInterface) *LearningHandler {
	return &LearningHandler{service: service}
}

type seasonListResponse struct {
	Seasons []string `json:"seasons"`
}

// Mine は受講生本人の学習記録と集計を返す。
// GET /api/learning?season=
func (h *LearningHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	summary, err := h.service.ForStudent(r.Context(), user, r.URL.Query().Get("season"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// List は学期・受講生で絞り込んだ学習記録を返す。
// GET /api/admin/learning?season=&student=
func (h *LearningHandler) List(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.List(r.Context(), learningQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Seasons GET /api/admin/learning/seasons
func (h *LearningHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.service.Seasons(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seasonListResponse{Seasons: seasons})
}

// Export は絞り込んだ学習記録を添付ファイルとして返す。
// GET /api/admin/learning/export?season=&student=
func (h *LearningHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, filename, err := h.service.Export(r.Context(), learningQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, export)
}

// RecordTestResult POST /api/admin/learning/test-results
func (h *LearningHandler) RecordTestResult(w http.ResponseWriter, r *http.Request) {
	var in learning.TestResultInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	result, err := h.service.RecordTestResult(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// RecordHomework POST /api/admin/learning/homework
func (h *LearningHandler) RecordHomework(w http.ResponseWriter, r *http.Request) {
	var in learning.HomeworkInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	hw, err := h.service.RecordHomework(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hw)
}

// DeleteTestResult DELETE /api/admin/learning/test-results/{id}
func (h *LearningHandler) DeleteTestResult(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTestResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteHomework DELETE /api/admin/learning/homework/{id}
func (h *LearningHandler) DeleteHomework(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteHomework(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func learningQuery(r *http.Request) visibility.LearningQuery {
	q := r.URL.Query()
	return visibility.NewLearningQuery(q.Get("season"), q.Get("student"))
}

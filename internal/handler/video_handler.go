package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/video"
)

// VideoServiceInterface は動画ハンドラーが必要とするサービスインターフェース。
type VideoServiceInterface interface {
	ListForStudent(ctx context.Context, viewer *model.User) ([]video.View, error)
	List(ctx context.Context) ([]video.View, error)
	Create(ctx context.Context, in video.Input) (*video.View, error)
	Update(ctx context.Context, id string, in video.Input) (*video.View, error)
	Delete(ctx context.Context, id string) error
	Comment(ctx context.Context, student *model.User, videoID string, in video.CommentInput) (*model.VideoComment, error)
	MyThreads(ctx context.Context, student *model.User, videoID string) ([]video.Thread, error)
	Threads(ctx context.Context, videoID string) ([]video.Thread, error)
	Reply(ctx context.Context, commentID string, in video.ReplyInput) (*model.VideoReply, error)
}

// VideoHandler は動画講義のHTTPハンドラー。
type VideoHandler struct {
	service VideoServiceInterface
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(service VideoServiceInterface) *VideoHandler {
	return &VideoHandler{service: service}
}

type videoListResponse struct {
	Videos []video.View `json:"videos"`
}

type threadListResponse struct {
	Threads []video.Thread `json:"threads"`
}

// ListForStudent は受講生が視聴できる動画を週の順に返す。
// GET /api/videos
func (h *VideoHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	videos, err := h.service.ListForStudent(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoListResponse{Videos: videos})
}

// MyComments は動画に付けた自分のコメントと返信を返す。
// GET /api/videos/{id}/comments
func (h *VideoHandler) MyComments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	threads, err := h.service.MyThreads(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threadListResponse{Threads: threads})
}

// Comment は動画にコメント（またはテスト解答）を登録する。
// POST /api/videos/{id}/comments
func (h *VideoHandler) Comment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in video.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	c, err := h.service.Comment(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List は全動画を返す。
// GET /api/admin/videos
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoListResponse{Videos: videos})
}

// Create は動画を登録する。
// POST /api/admin/videos
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in video.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	v, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Update は動画を更新する。
// PUT /api/admin/videos/{id}
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in video.Input
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	v, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Delete は動画と付随するコメントを削除する。
// DELETE /api/admin/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Threads は動画の全コメントと返信を返す。
// GET /api/admin/videos/{id}/comments
func (h *VideoHandler) Threads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.service.Threads(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threadListResponse{Threads: threads})
}

// Reply はコメントに講師の返信を付ける。
// POST /api/admin/videos/comments/{commentID}/replies
func (h *VideoHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var in video.ReplyInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	reply, err := h.service.Reply(r.Context(), chi.URLParam(r, "commentID"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

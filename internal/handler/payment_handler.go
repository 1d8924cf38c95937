package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/payment"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	VisibleItems(ctx context.Context, student *model.User) ([]model.PaymentItem, error)
	CreateRequest(ctx context.Context, student *model.User, in payment.RequestInput) (*model.PaymentRequest, error)
	MyRequests(ctx context.Context, student *model.User) ([]model.PaymentRequest, error)
	List(ctx context.Context, q visibility.PaymentQuery) ([]model.PaymentRequest, error)
	Transition(ctx context.Context, id string, to model.PaymentStatus, paymentMethod, memo string) (*model.PaymentRequest, error)
	UpdateMemo(ctx context.Context, id, memo string) (*model.PaymentRequest, error)
	ListItems(ctx context.Context) ([]model.PaymentItem, error)
	CreateItem(ctx context.Context, in payment.ItemInput) (*model.PaymentItem, error)
	UpdateItem(ctx context.Context, id string, in payment.ItemInput) (*model.PaymentItem, error)
	DeleteItem(ctx context.Context, id string) error
}

// PaymentHandler は教材費決済のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type paymentItemListResponse struct {
	Items []model.PaymentItem `json:"items"`
}

type paymentRequestListResponse struct {
	Requests []model.PaymentRequest `json:"requests"`
}

// paymentStatusRequest は決済リクエストの状態変更ボディ。
type paymentStatusRequest struct {
	Status        model.PaymentStatus `json:"status" validate:"oneof=paid cancelled refunded"`
	PaymentMethod string              `json:"paymentMethod"`
	Memo          string              `json:"memo" validate:"max=1000"`
}

type memoRequest struct {
	Memo string `json:"memo" validate:"max=1000"`
}

// VisibleItems は受講生の学校・学年向けの教材一覧を返す。
// GET /api/payments/items
func (h *PaymentHandler) VisibleItems(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	items, err := h.service.VisibleItems(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentItemListResponse{Items: items})
}

// MyRequests は受講生本人の決済リクエストを返す。
// GET /api/payments/requests
func (h *PaymentHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	requests, err := h.service.MyRequests(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentRequestListResponse{Requests: requests})
}

// CreateRequest は選択した教材で決済リクエストを作成する。
// POST /api/payments/requests
func (h *PaymentHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in payment.RequestInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	p, err := h.service.CreateRequest(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListRequests は状態で絞り込んだ決済リクエストを返す。
// GET /api/admin/payments/requests?status=
func (h *PaymentHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q, err := visibility.ParsePaymentQuery(r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	requests, err := h.service.List(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentRequestListResponse{Requests: requests})
}

// TransitionRequest は決済リクエストの状態を変更する。
// PUT /api/admin/payments/requests/{id}/status
func (h *PaymentHandler) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}
	p, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, req.PaymentMethod, req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateRequestMemo は状態を変えずにメモを更新する。
// PUT /api/admin/payments/requests/{id}/memo
func (h *PaymentHandler) UpdateRequestMemo(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}
	p, err := h.service.UpdateMemo(r.Context(), chi.URLParam(r, "id"), req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListItems は教材カタログ全件を返す。
// GET /api/admin/payments/items
func (h *PaymentHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentItemListResponse{Items: items})
}

// CreateItem はカタログに教材を追加する。
// POST /api/admin/payments/items
func (h *PaymentHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in payment.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem はカタログの教材を更新する。既存の決済リクエストには影響しない。
// PUT /api/admin/payments/items/{id}
func (h *PaymentHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var in payment.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem はカタログから教材を削除する。
// DELETE /api/admin/payments/items/{id}
func (h *PaymentHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

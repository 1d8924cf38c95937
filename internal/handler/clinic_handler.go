package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dongin/internal/clinic"
	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

// ClinicServiceInterface はクリニック予約ハンドラーが必要とするサービスインターフェース。
type ClinicServiceInterface interface {
	ListSlots(ctx context.Context) ([]model.ClinicSlot, error)
	SlotsByDate(ctx context.Context) ([]clinic.DaySlots, error)
	Reserve(ctx context.Context, student *model.User, in clinic.ReserveInput) (*model.ClinicReservation, error)
	MyReservations(ctx context.Context, student *model.User) ([]model.ClinicReservation, error)
	List(ctx context.Context, q visibility.ReservationQuery) ([]model.ClinicReservation, clinic.Summary, error)
	Transition(ctx context.Context, id string, to model.ReservationStatus, memo string) (*model.ClinicReservation, error)
	UpdateMemo(ctx context.Context, id, memo string) (*model.ClinicReservation, error)
	CreateSlot(ctx context.Context, in clinic.SlotInput) (*model.ClinicSlot, error)
	DeleteSlot(ctx context.Context, id string) error
}

// ClinicHandler はクリニック予約のHTTPハンドラー。
type ClinicHandler struct {
	service ClinicServiceInterface
}

// NewClinicHandler はClinicHandlerを生成する。
func NewClinicHandler(service ClinicServiceInterface) *ClinicHandler {
	return &ClinicHandler{service: service}
}

type daySlotsResponse struct {
	Days []clinic.DaySlots `json:"days"`
}

type slotListResponse struct {
	Slots []model.ClinicSlot `json:"slots"`
}

type reservationListResponse struct {
	Reservations []model.ClinicReservation `json:"reservations"`
	Summary      *clinic.Summary           `json:"summary,omitempty"`
}

// reservationStatusRequest は予約の状態変更ボディ。
type reservationStatusRequest struct {
	Status model.ReservationStatus `json:"status" validate:"oneof=confirmed completed cancelled"`
	Memo   string                  `json:"memo" validate:"max=1000"`
}

// Slots は日付ごとの予約枠を返す。
// GET /api/clinic/slots
func (h *ClinicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	days, err := h.service.SlotsByDate(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daySlotsResponse{Days: days})
}

// MyReservations は受講生本人の予約を返す。
// GET /api/clinic/reservations
func (h *ClinicHandler) MyReservations(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	reservations, err := h.service.MyReservations(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationListResponse{Reservations: reservations})
}

// Reserve は空き枠を予約する。先に確保された枠は409を返す。
// POST /api/clinic/reservations
func (h *ClinicHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in clinic.ReserveInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	res, err := h.service.Reserve(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListSlots は全予約枠を返す。
// GET /api/admin/clinic/slots
func (h *ClinicHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.ListSlots(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotListResponse{Slots: slots})
}

// CreateSlot は予約枠を登録する。
// POST /api/admin/clinic/slots
func (h *ClinicHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var in clinic.SlotInput
	if err := decodeJSON(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}
	slot, err := h.service.CreateSlot(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// DeleteSlot は空き枠を削除する。
// DELETE /api/admin/clinic/slots/{id}
func (h *ClinicHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReservations は状態・日付で絞り込んだ予約と件数を返す。
// GET /api/admin/clinic/reservations?status=&date=
func (h *ClinicHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q, err := visibility.ParseReservationQuery(r.URL.Query().Get("status"), r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	reservations, summary, err := h.service.List(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationListResponse{Reservations: reservations, Summary: &summary})
}

// TransitionReservation は予約の状態を変更する。
// PUT /api/admin/clinic/reservations/{id}/status
func (h *ClinicHandler) TransitionReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}
	res, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateReservationMemo は状態を変えずにメモを更新する。
// PUT /api/admin/clinic/reservations/{id}/memo
func (h *ClinicHandler) UpdateReservationMemo(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}
	res, err := h.service.UpdateMemo(r.Context(), chi.URLParam(r, "id"), req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

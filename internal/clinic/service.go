// Package clinic はクリニック予約枠と予約の状態遷移を提供する。
//
// 予約の状態遷移:
//
//	(なし) → pending     受講生が空き枠を予約（枠は予約済みになる）
//	pending → confirmed  管理者が確定（confirmedAt=今日）
//	pending → cancelled  管理者が取消（枠は予約済みのまま）
//	confirmed → completed 管理者が完了
//
// それ以外の遷移はINVALID_TRANSITIONで拒否し、状態は変えない。
package clinic

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

const transitionKind = "clinic"

// TransitionRecorder は状態遷移の記録先（メトリクス）。
type TransitionRecorder interface {
	RecordTransition(kind, to string)
}

// ReserveInput は受講生の予約入力。
type ReserveInput struct {
	SlotID      string                `json:"slotId" validate:"required"`
	Type        model.ReservationType `json:"type" validate:"omitempty,oneof=individual group"`
	Subject     string                `json:"subject" validate:"notblank,max=100"`
	Description string                `json:"description" validate:"notblank,max=1000"`
}

// SlotInput は管理者の予約枠登録入力。
type SlotInput struct {
	Date        string `json:"date" validate:"required,ymd"`
	Time        string `json:"time" validate:"required,hhmm"`
	Description string `json:"description" validate:"max=200"`
}

// DaySlots は日付ごとの予約枠。
type DaySlots struct {
	Date  string             `json:"date"`
	Slots []model.ClinicSlot `json:"slots"`
}

// Summary は管理画面の予約件数。
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Today     int `json:"today"`
}

// transitions は許可される遷移の一覧。
var transitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.ReservationPending:   {model.ReservationConfirmed, model.ReservationCancelled},
	model.ReservationConfirmed: {model.ReservationCompleted},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to model.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service はクリニック予約のビジネスロジックを提供する。
// 読み込みから保存までをmuで直列化し、同じ枠への同時予約は先着1件のみ成功する。
type Service struct {
	mu       sync.Mutex
	store    *store.Store
	clock    *visibility.Clock
	recorder TransitionRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(st *store.Store, clock *visibility.Clock, recorder TransitionRecorder) *Service {
	return &Service{store: st, clock: clock, recorder: recorder}
}

// ListSlots は予約枠を日時順に返す。
func (s *Service) ListSlots(ctx context.Context) ([]model.ClinicSlot, error) {
	slots, err := s.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	sortSlots(slots)
	return slots, nil
}

// SlotsByDate は予約枠を日付ごとにまとめて返す。
func (s *Service) SlotsByDate(ctx context.Context) ([]DaySlots, error) {
	slots, err := s.ListSlots(ctx)
	if err != nil {
		return nil, err
	}

	days := []DaySlots{}
	for _, slot := range slots {
		if n := len(days); n > 0 && days[n-1].Date == slot.Date {
			days[n-1].Slots = append(days[n-1].Slots, slot)
			continue
		}
		days = append(days, DaySlots{Date: slot.Date, Slots: []model.ClinicSlot{slot}})
	}
	return days, nil
}

// Reserve は受講生が空き枠を予約する。
// 枠が予約済みの場合はSLOT_UNAVAILABLEを返し、何も保存しない。
func (s *Service) Reserve(ctx context.Context, student *model.User, in ReserveInput) (*model.ClinicReservation, error) {
	if !student.IsStudent() {
		return nil, model.NewForbiddenError()
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = model.ReservationIndividual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfSlot(slots, in.SlotID)
	if idx < 0 {
		return nil, model.NewNotFoundError("예약 시간", in.SlotID)
	}
	if !slots[idx].IsAvailable {
		return nil, model.NewSlotUnavailableError(in.SlotID)
	}

	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return nil, err
	}

	original := slots[idx]
	slots[idx].IsAvailable = false
	slots[idx].ReservedBy = student.DisplayName()

	r := model.ClinicReservation{
		ID:          uuid.New().String(),
		StudentID:   student.ID,
		StudentName: student.DisplayName(),
		SlotID:      original.ID,
		Date:        original.Date,
		Time:        original.Time,
		Type:        in.Type,
		Subject:     in.Subject,
		Description: in.Description,
		Status:      model.ReservationPending,
		CreatedAt:   s.clock.TodayString(),
	}

	if err := s.saveSlots(ctx, slots); err != nil {
		return nil, err
	}
	if err := s.saveReservations(ctx, append(reservations, r)); err != nil {
		slots[idx] = original
		s.rollbackSlots(ctx, slots)
		return nil, err
	}

	s.record(model.ReservationPending)
	slog.Info("clinic slot reserved",
		slog.String("reservation_id", r.ID),
		slog.String("slot_id", r.SlotID),
		slog.String("student_id", r.StudentID),
	)
	return &r, nil
}

// MyReservations は受講生本人の予約を日時順に返す。
func (s *Service) MyReservations(ctx context.Context, student *model.User) ([]model.ClinicReservation, error) {
	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return nil, err
	}
	mine := visibility.Filter(reservations, func(r model.ClinicReservation) bool {
		return r.StudentID == student.ID
	})
	sortReservations(mine)
	return mine, nil
}

// List は管理者向けに条件に一致する予約を(date, time, id)の昇順で返す。
// Summaryは絞り込み前の全件で数える。
func (s *Service) List(ctx context.Context, q visibility.ReservationQuery) ([]model.ClinicReservation, Summary, error) {
	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return nil, Summary{}, err
	}

	today := s.clock.Today()
	todayStr := s.clock.TodayString()
	sum := Summary{Total: len(reservations)}
	for _, r := range reservations {
		switch r.Status {
		case model.ReservationPending:
			sum.Pending++
		case model.ReservationConfirmed:
			sum.Confirmed++
		}
		if r.Date == todayStr {
			sum.Today++
		}
	}

	out := visibility.Filter(reservations, func(r model.ClinicReservation) bool {
		return q.Match(r, today)
	})
	sortReservations(out)
	return out, sum, nil
}

// Confirm は保留中の予約を確定する。
func (s *Service) Confirm(ctx context.Context, id, memo string) (*model.ClinicReservation, error) {
	return s.Transition(ctx, id, model.ReservationConfirmed, memo)
}

// Complete は確定済みの予約を完了にする。
func (s *Service) Complete(ctx context.Context, id, memo string) (*model.ClinicReservation, error) {
	return s.Transition(ctx, id, model.ReservationCompleted, memo)
}

// Cancel は保留中の予約を取り消す。枠は自動では空かない。
func (s *Service) Cancel(ctx context.Context, id, memo string) (*model.ClinicReservation, error) {
	return s.Transition(ctx, id, model.ReservationCancelled, memo)
}

// Transition は予約の状態をtoへ遷移させる。memoが空でなければ上書きする。
func (s *Service) Transition(ctx context.Context, id string, to model.ReservationStatus, memo string) (*model.ClinicReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfReservation(reservations, id)
	if idx < 0 {
		return nil, model.NewNotFoundError("예약", id)
	}

	r := reservations[idx]
	if !CanTransition(r.Status, to) {
		return nil, model.NewInvalidTransitionError(transitionKind, string(r.Status), string(to))
	}

	r.Status = to
	if to == model.ReservationConfirmed {
		r.ConfirmedAt = s.clock.TodayString()
	}
	if memo != "" {
		r.Memo = memo
	}

	reservations[idx] = r
	if err := s.saveReservations(ctx, reservations); err != nil {
		return nil, err
	}

	s.record(to)
	slog.Info("clinic reservation transitioned",
		slog.String("reservation_id", r.ID),
		slog.String("to", string(to)),
	)
	return &r, nil
}

// UpdateMemo は状態を変えずにメモのみ更新する。
// メモを書き換えられるのはpendingとconfirmedの予約だけ。
func (s *Service) UpdateMemo(ctx context.Context, id, memo string) (*model.ClinicReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfReservation(reservations, id)
	if idx < 0 {
		return nil, model.NewNotFoundError("예약", id)
	}

	// 完了・取消済みの予約は記録として固定する
	if status := reservations[idx].Status; !memoEditable(status) {
		return nil, model.NewInvalidTransitionError(transitionKind, string(status), string(status))
	}

	reservations[idx].Memo = memo
	if err := s.saveReservations(ctx, reservations); err != nil {
		return nil, err
	}
	r := reservations[idx]
	return &r, nil
}

// CreateSlot は予約枠を登録する。同一日時の枠は登録できない。
func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (*model.ClinicSlot, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if slot.Date == in.Date && slot.Time == in.Time {
			return nil, model.NewDuplicateSlotError(in.Date, in.Time)
		}
	}

	slot := model.ClinicSlot{
		ID:          uuid.New().String(),
		Date:        in.Date,
		Time:        in.Time,
		IsAvailable: true,
		Description: in.Description,
	}
	if err := s.saveSlots(ctx, append(slots, slot)); err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeleteSlot は空き枠を削除する。予約済みの枠は削除できない。
func (s *Service) DeleteSlot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.loadSlots(ctx)
	if err != nil {
		return err
	}
	idx := indexOfSlot(slots, id)
	if idx < 0 {
		return model.NewNotFoundError("예약 시간", id)
	}
	if !slots[idx].IsAvailable {
		return model.NewSlotUnavailableError(id)
	}

	return s.saveSlots(ctx, append(slots[:idx], slots[idx+1:]...))
}

// PendingCount は保留中の予約数を返す。
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	reservations, err := s.loadReservations(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range reservations {
		if r.Status == model.ReservationPending {
			n++
		}
	}
	return n, nil
}

func (s *Service) loadSlots(ctx context.Context) ([]model.ClinicSlot, error) {
	slots, err := store.Load(ctx, s.store, store.KeyClinicSlots, []model.ClinicSlot{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return slots, nil
}

func (s *Service) saveSlots(ctx context.Context, slots []model.ClinicSlot) error {
	if err := store.Save(ctx, s.store, store.KeyClinicSlots, slots); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) rollbackSlots(ctx context.Context, slots []model.ClinicSlot) {
	if err := store.Save(ctx, s.store, store.KeyClinicSlots, slots); err != nil {
		slog.Error("failed to roll back clinic slots", slog.String("error", err.Error()))
	}
}

func (s *Service) loadReservations(ctx context.Context) ([]model.ClinicReservation, error) {
	reservations, err := store.Load(ctx, s.store, store.KeyClinicReservations, []model.ClinicReservation{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return reservations, nil
}

func (s *Service) saveReservations(ctx context.Context, reservations []model.ClinicReservation) error {
	if err := store.Save(ctx, s.store, store.KeyClinicReservations, reservations); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) record(to model.ReservationStatus) {
	if s.recorder != nil {
		s.recorder.RecordTransition(transitionKind, string(to))
	}
}

func indexOfSlot(slots []model.ClinicSlot, id string) int {
	for i := range slots {
		if slots[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfReservation(reservations []model.ClinicReservation, id string) int {
	for i := range reservations {
		if reservations[i].ID == id {
			return i
		}
	}
	return -1
}

func memoEditable(status model.ReservationStatus) bool {
	return status == model.ReservationPending || status == model.ReservationConfirmed
}

func sortSlots(slots []model.ClinicSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
}

func sortReservations(rs []model.ClinicReservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Date != rs[j].Date {
			return rs[i].Date < rs[j].Date
		}
		if rs[i].Time != rs[j].Time {
			return rs[i].Time < rs[j].Time
		}
		return rs[i].ID < rs[j].ID
	})
}

// Package payment は教材カタログと決済リクエストの状態遷移を提供する。
package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

const transitionKind = "payment"

// TransitionRecorder は状態遷移の記録先（メトリクス）。
type TransitionRecorder interface {
	RecordTransition(kind, to string)
}

// RequestInput は受講生の決済リクエスト入力。
type RequestInput struct {
	ItemIDs []string `json:"itemIds" validate:"required,min=1,unique,dive,required"`
}

// ItemInput は管理者のカタログ行入力。
type ItemInput struct {
	Title       string                `json:"title" validate:"notblank,max=100"`
	Description string                `json:"description" validate:"max=500"`
	Price       int                   `json:"price" validate:"gt=0"`
	School      string                `json:"school" validate:"notblank"`
	Grade       int                   `json:"grade" validate:"min=1,max=3"`
	Category    model.PaymentCategory `json:"category" validate:"oneof=textbook workbook test"`
	IsRequired  bool                  `json:"isRequired"`
}

// transitions は許可される遷移の一覧。
var transitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending: {model.PaymentPaid, model.PaymentCancelled},
	model.PaymentPaid:    {model.PaymentRefunded},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to model.PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service は決済に関するビジネスロジックを提供する。
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

// VisibleItems は受講生の学校・学年向けのカタログ行を返す。
func (s *Service) VisibleItems(ctx context.Context, student *model.User) ([]model.PaymentItem, error) {
	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(items, func(p model.PaymentItem) bool {
		return visibility.PaymentItemVisible(p, student)
	}), nil
}

// CreateRequest は選択したカタログ行から決済リクエストを作成する。
// 明細はカタログのコピーで、後からカタログを変更しても影響しない。
func (s *Service) CreateRequest(ctx context.Context, student *model.User, in RequestInput) (*model.PaymentRequest, error) {
	if !student.IsStudent() {
		return nil, model.NewForbiddenError()
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.PaymentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	lines := make([]model.PaymentLineItem, 0, len(in.ItemIDs))
	total := 0
	for _, id := range in.ItemIDs {
		item, ok := byID[id]
		if !ok || !visibility.PaymentItemVisible(item, student) {
			return nil, model.NewValidationError("선택할 수 없는 교재입니다.",
				model.FieldError{Field: "itemIds", Error: id})
		}
		lines = append(lines, model.PaymentLineItem{
			ItemID:   item.ID,
			Title:    item.Title,
			Category: item.Category,
			Price:    item.Price,
		})
		total += item.Price
	}

	requests, err := s.loadRequests(ctx)
	if err != nil {
		return nil, err
	}

	p := model.PaymentRequest{
		ID:          uuid.New().String(),
		StudentID:   student.ID,
		StudentName: student.DisplayName(),
		School:      student.Profile.School,
		Grade:       student.Profile.Grade,
		Items:       lines,
		TotalAmount: total,
		Status:      model.PaymentPending,
		RequestDate: s.clock.TodayString(),
	}
	if err := s.saveRequests(ctx, append(requests, p)); err != nil {
		return nil, err
	}

	s.record(model.PaymentPending)
	slog.Info("payment request created",
		slog.String("payment_id", p.ID),
		slog.String("student_id", p.StudentID),
		slog.Int("total_amount", p.TotalAmount),
	)
	return &p, nil
}

// MyRequests は受講生本人の決済リクエストを新しい順に返す。
func (s *Service) MyRequests(ctx context.Context, student *model.User) ([]model.PaymentRequest, error) {
	requests, err := s.loadRequests(ctx)
	if err != nil {
		return nil, err
	}
	mine := visibility.Filter(requests, func(p model.PaymentRequest) bool {
		return p.StudentID == student.ID
	})
	sortNewestFirst(mine)
	return mine, nil
}

// List は管理者向けに条件に一致する決済リクエストを新しい順に返す。
func (s *Service) List(ctx context.Context, q visibility.PaymentQuery) ([]model.PaymentRequest, error) {
	requests, err := s.loadRequests(ctx)
	if err != nil {
		return nil, err
	}
	out := visibility.Filter(requests, q.Match)
	sortNewestFirst(out)
	return out, nil
}

// MarkPaid は保留中のリクエストを支払済みにする。paymentMethodは必須。
func (s *Service) MarkPaid(ctx context.Context, id, paymentMethod, memo string) (*model.PaymentRequest, error) {
	return s.Transition(ctx, id, model.PaymentPaid, paymentMethod, memo)
}

// Cancel は保留中のリクエストを取り消す。
func (s *Service) Cancel(ctx context.Context, id, memo string) (*model.PaymentRequest, error) {
	return s.Transition(ctx, id, model.PaymentCancelled, "", memo)
}

// Refund は支払済みのリクエストを返金済みにする。
func (s *Service) Refund(ctx context.Context, id, memo string) (*model.PaymentRequest, error) {
	return s.Transition(ctx, id, model.PaymentRefunded, "", memo)
}

// Transition は決済リクエストの状態をtoへ遷移させる。
// 支払済みへの遷移ではpaidDate=今日、paymentMethodを記録する。
func (s *Service) Transition(ctx context.Context, id string, to model.PaymentStatus, paymentMethod, memo string) (*model.PaymentRequest, error) {
	if to == model.PaymentPaid && paymentMethod == "" {
		return nil, model.NewValidationError("결제 방법을 입력해주세요.",
			model.FieldError{Field: "paymentMethod", Error: "required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requests, err := s.loadRequests(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(requests, id)
	if idx < 0 {
		return nil, model.NewNotFoundError("결제 요청", id)
	}

	p := requests[idx]
	if !CanTransition(p.Status, to) {
		return nil, model.NewInvalidTransitionError(transitionKind, string(p.Status), string(to))
	}

	p.Status = to
	if to == model.PaymentPaid {
		p.PaidDate = s.clock.TodayString()
		p.PaymentMethod = paymentMethod
	}
	if memo != "" {
		p.Memo = memo
	}

	requests[idx] = p
	if err := s.saveRequests(ctx, requests); err != nil {
		return nil, err
	}

	s.record(to)
	slog.Info("payment request transitioned",
		slog.String("payment_id", p.ID),
		slog.String("to", string(to)),
	)
	return &p, nil
}

// UpdateMemo は状態を変えずにメモのみ更新する。
// メモを書き換えられるのはpendingとpaidのリクエストだけ。
func (s *Service) UpdateMemo(ctx context.Context, id, memo string) (*model.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests, err := s.loadRequests(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(requests, id)
	if idx < 0 {
		return nil, model.NewNotFoundError("결제 요청", id)
	}

	// 取消・返金済みのリクエストは記録として固定する
	if status := requests[idx].Status; !memoEditable(status) {
		return nil, model.NewInvalidTransitionError(transitionKind, string(status), string(status))
	}

	requests[idx].Memo = memo
	if err := s.saveRequests(ctx, requests); err != nil {
		return nil, err
	}
	p := requests[idx]
	return &p, nil
}

func memoEditable(status model.PaymentStatus) bool {
	return status == model.PaymentPending || status == model.PaymentPaid
}

// PendingCount は保留中の決済リクエスト数を返す。
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	requests, err := s.loadRequests(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range requests {
		if p.Status == model.PaymentPending {
			n++
		}
	}
	return n, nil
}

func (s *Service) loadRequests(ctx context.Context) ([]model.PaymentRequest, error) {
	requests, err := store.Load(ctx, s.store, store.KeyPayments, []model.PaymentRequest{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return requests, nil
}

func (s *Service) saveRequests(ctx context.Context, requests []model.PaymentRequest) error {
	if err := store.Save(ctx, s.store, store.KeyPayments, requests); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) record(to model.PaymentStatus) {
	if s.recorder != nil {
		s.recorder.RecordTransition(transitionKind, string(to))
	}
}

func indexOf(requests []model.PaymentRequest, id string) int {
	for i := range requests {
		if requests[i].ID == id {
			return i
		}
	}
	return -1
}

func sortNewestFirst(requests []model.PaymentRequest) {
	visibility.NewestFirst(requests, func(p model.PaymentRequest) string { return p.RequestDate })
}

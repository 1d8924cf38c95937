// Package qna は匿名Q&A掲示板を提供する。
//
// 受講生には質問者の実名を見せず、管理者のみが実名を確認できる。
// 質問は未回答から回答済みへ一方向にのみ遷移する。
package qna

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

const transitionKind = "qna"

// TransitionRecorder は状態遷移の記録先（メトリクス）。
type TransitionRecorder interface {
	RecordTransition(kind, to string)
}

// TextStripper は利用者入力からタグを除去する。
type TextStripper interface {
	StripTags(text string) string
}

// AskInput は受講生の質問入力。
type AskInput struct {
	Question string `json:"question" validate:"notblank,max=2000"`
}

// AnswerInput は管理者の回答入力。
type AnswerInput struct {
	Answer string `json:"answer" validate:"notblank,max=4000"`
}

// AdminView は管理者向けの一覧。未回答と回答済みに分かれる。
type AdminView struct {
	Unanswered []model.QnAItem `json:"unanswered"`
	Answered   []model.QnAItem `json:"answered"`
}

// Service はQ&Aに関するビジネスロジックを提供する。
type Service struct {
	mu       sync.Mutex
	store    *store.Store
	clock    *visibility.Clock
	stripper TextStripper
	recorder TransitionRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(st *store.Store, clock *visibility.Clock, stripper TextStripper, recorder TransitionRecorder) *Service {
	return &Service{store: st, clock: clock, stripper: stripper, recorder: recorder}
}

// Ask は受講生の質問を未回答として登録する。公開著者名は常に익명。
func (s *Service) Ask(ctx context.Context, student *model.User, in AskInput) (*model.QnAItem, error) {
	if !student.IsStudent() {
		return nil, model.NewForbiddenError()
	}
	in.Question = s.stripper.StripTags(in.Question)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	q := model.QnAItem{
		ID:          uuid.New().String(),
		Question:    in.Question,
		Author:      model.AnonymousAuthor,
		StudentName: student.DisplayName(),
		StudentID:   student.ID,
		CreatedAt:   s.clock.TodayString(),
		IsPrivate:   true,
	}
	if err := s.save(ctx, append(items, q)); err != nil {
		return nil, err
	}

	s.record("unanswered")
	slog.Info("question asked", slog.String("qna_id", q.ID), slog.String("student_id", student.ID))
	return &q, nil
}

// ListForStudent は全質問を新しい順に返す。質問者の実名とIDは伏せる。
func (s *Service) ListForStudent(ctx context.Context) ([]model.QnAItem, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	for i := range items {
		items[i].StudentName = ""
		items[i].StudentID = ""
	}
	return items, nil
}

// ListForAdmin は実名付きで未回答・回答済みに分けて返す。
func (s *Service) ListForAdmin(ctx context.Context) (*AdminView, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)

	view := &AdminView{Unanswered: []model.QnAItem{}, Answered: []model.QnAItem{}}
	for _, q := range items {
		if q.Answered() {
			view.Answered = append(view.Answered, q)
		} else {
			view.Unanswered = append(view.Unanswered, q)
		}
	}
	return view, nil
}

// Answer は回答を登録する。回答済みの場合は本文を上書きし、answeredAtを今日に更新する。
func (s *Service) Answer(ctx context.Context, id string, in AnswerInput) (*model.QnAItem, error) {
	in.Answer = s.stripper.StripTags(in.Answer)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		first := !items[i].Answered()
		items[i].Answer = in.Answer
		items[i].AnsweredAt = s.clock.TodayString()
		if err := s.save(ctx, items); err != nil {
			return nil, err
		}
		if first {
			s.record("answered")
		}
		q := items[i]
		return &q, nil
	}
	return nil, model.NewNotFoundError("질문", id)
}

// Delete は質問を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			return s.save(ctx, append(items[:i], items[i+1:]...))
		}
	}
	return model.NewNotFoundError("질문", id)
}

// UnansweredCount は未回答の質問数を返す。
func (s *Service) UnansweredCount(ctx context.Context) (int, error) {
	items, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range items {
		if !q.Answered() {
			n++
		}
	}
	return n, nil
}

func (s *Service) load(ctx context.Context) ([]model.QnAItem, error) {
	items, err := store.Load(ctx, s.store, store.KeyQnA, []model.QnAItem{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, items []model.QnAItem) error {
	if err := store.Save(ctx, s.store, store.KeyQnA, items); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) record(to string) {
	if s.recorder != nil {
		s.recorder.RecordTransition(transitionKind, to)
	}
}

func sortNewestFirst(items []model.QnAItem) {
	visibility.NewestFirst(items, func(q model.QnAItem) string { return q.CreatedAt })
}

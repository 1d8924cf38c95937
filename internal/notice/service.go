// Package notice は公告の管理と、受講生向けの公告一覧を提供する。
package notice

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

// Input は管理者の公告入力。
type Input struct {
	Title    string               `json:"title" validate:"notblank,max=200"`
	Content  string               `json:"content" validate:"notblank"`
	Category model.NoticeCategory `json:"category" validate:"oneof=general school"`
	School   string               `json:"school"`
	Grade    int                  `json:"grade" validate:"omitempty,min=1,max=3"`
}

// validate はタグ検証に加え、学校別公告の学校・学年必須を検証する。
func (in Input) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.Category != model.NoticeSchool {
		return nil
	}
	var fields []model.FieldError
	if strings.TrimSpace(in.School) == "" {
		fields = append(fields, model.FieldError{Field: "school", Error: "school is required for school notices"})
	}
	if in.Grade == 0 {
		fields = append(fields, model.FieldError{Field: "grade", Error: "grade is required for school notices"})
	}
	if len(fields) > 0 {
		return model.NewValidationError("학교별 공지는 학교와 학년을 입력해주세요.", fields...)
	}
	return nil
}

// StudentView は受講生向けの公告一覧。全体公告と学校別公告に分かれる。
type StudentView struct {
	General []model.Notice `json:"general"`
	School  []model.Notice `json:"school"`
}

// Service は公告に関するビジネスロジックを提供する。
type Service struct {
	mu          sync.Mutex
	store       *store.Store
	clock       *visibility.Clock
	teacherName string
}

// NewService はServiceを生成する。teacherNameは公告の著者名として使われる。
func NewService(st *store.Store, clock *visibility.Clock, teacherName string) *Service {
	if teacherName == "" {
		teacherName = store.SeedTeacherName
	}
	return &Service{store: st, clock: clock, teacherName: teacherName}
}

// ListForStudent は閲覧者に見える公告を新しい順に、全体と学校別に分けて返す。
func (s *Service) ListForStudent(ctx context.Context, viewer *model.User) (*StudentView, error) {
	notices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(notices)

	view := &StudentView{General: []model.Notice{}, School: []model.Notice{}}
	for _, n := range notices {
		if !visibility.NoticeVisible(n, viewer) {
			continue
		}
		if n.Category == model.NoticeSchool {
			view.School = append(view.School, n)
		} else {
			view.General = append(view.General, n)
		}
	}
	return view, nil
}

// List は管理者向けに全公告を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]model.Notice, error) {
	notices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(notices)
	return notices, nil
}

// Count は公告数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	notices, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(notices), nil
}

// Create は公告を作成する。
func (s *Service) Create(ctx context.Context, in Input) (*model.Notice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	n := model.Notice{
		ID:        uuid.New().String(),
		Author:    s.teacherName,
		CreatedAt: s.clock.TodayString(),
	}
	applyInput(&n, in)
	if err := s.save(ctx, append(notices, n)); err != nil {
		return nil, err
	}

	slog.Info("notice created", slog.String("notice_id", n.ID), slog.String("category", string(n.Category)))
	return &n, nil
}

// Update は公告を更新する。作成日は変わらない。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Notice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range notices {
		if notices[i].ID != id {
			continue
		}
		applyInput(&notices[i], in)
		if err := s.save(ctx, notices); err != nil {
			return nil, err
		}
		n := notices[i]
		return &n, nil
	}
	return nil, model.NewNotFoundError("공지사항", id)
}

// Delete は公告を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notices, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range notices {
		if notices[i].ID == id {
			return s.save(ctx, append(notices[:i], notices[i+1:]...))
		}
	}
	return model.NewNotFoundError("공지사항", id)
}

// appendImported は取り込んだ公告のうち、SourceIDが未登録のものだけを追加する。
// 追加件数を返す。
func (s *Service) appendImported(ctx context.Context, entries []model.Notice) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notices, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(notices))
	for _, n := range notices {
		if n.SourceID != "" {
			seen[n.SourceID] = true
		}
	}

	added := 0
	for _, e := range entries {
		if e.SourceID == "" || seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		e.ID = uuid.New().String()
		e.Author = s.teacherName
		e.Category = model.NoticeGeneral
		notices = append(notices, e)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.save(ctx, notices); err != nil {
		return 0, err
	}
	return added, nil
}

func applyInput(n *model.Notice, in Input) {
	n.Title = in.Title
	n.Content = in.Content
	n.Category = in.Category
	if in.Category == model.NoticeSchool {
		n.School = strings.TrimSpace(in.School)
		n.Grade = in.Grade
	} else {
		n.School = ""
		n.Grade = 0
	}
}

func (s *Service) load(ctx context.Context) ([]model.Notice, error) {
	notices, err := store.Load(ctx, s.store, store.KeyNotices, []model.Notice{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return notices, nil
}

func (s *Service) save(ctx context.Context, notices []model.Notice) error {
	if err := store.Save(ctx, s.store, store.KeyNotices, notices); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func sortNewestFirst(notices []model.Notice) {
	visibility.NewestFirst(notices, func(n model.Notice) string { return n.CreatedAt })
}

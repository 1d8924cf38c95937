// Package video は補講動画の管理と、受講生の視聴・コメントを提供する。
package video

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

// TextStripper は利用者入力からタグを除去する。
type TextStripper interface {
	StripTags(text string) string
}

// Input は管理者の動画入力。
type Input struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"notblank,max=2000"`
	School      string `json:"school" validate:"notblank"`
	Grade       int    `json:"grade" validate:"min=1,max=3"`
	Week        int    `json:"week" validate:"min=1,max=20"`
	VideoURL    string `json:"videoUrl" validate:"notblank,max=500"`
	IsPublic    bool   `json:"isPublic"`
	ValidUntil  string `json:"validUntil" validate:"omitempty,ymd"`
}

// View は埋め込みURL付きの動画。
type View struct {
	model.VideoItem
	EmbedURL string `json:"embedUrl"`
}

// Service は動画に関するビジネスロジックを提供する。
type Service struct {
	mu          sync.Mutex
	store       *store.Store
	clock       *visibility.Clock
	guard       URLValidator
	stripper    TextStripper
	teacherName string
}

// NewService はServiceを生成する。
func NewService(st *store.Store, clock *visibility.Clock, guard URLValidator, stripper TextStripper, teacherName string) *Service {
	if teacherName == "" {
		teacherName = store.SeedTeacherName
	}
	return &Service{store: st, clock: clock, guard: guard, stripper: stripper, teacherName: teacherName}
}

// ListForStudent は閲覧者に見える動画を週の順に返す。
func (s *Service) ListForStudent(ctx context.Context, viewer *model.User) ([]View, error) {
	videos, err := s.loadVideos(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	visible := visibility.Filter(videos, func(v model.VideoItem) bool {
		return visibility.VideoVisible(v, viewer, today)
	})
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Week < visible[j].Week
	})
	return toViews(visible), nil
}

// List は管理者向けに全動画を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]View, error) {
	videos, err := s.loadVideos(ctx)
	if err != nil {
		return nil, err
	}
	visibility.NewestFirst(videos, func(v model.VideoItem) string { return v.CreatedAt })
	return toViews(videos), nil
}

// Count は動画数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	videos, err := s.loadVideos(ctx)
	if err != nil {
		return 0, err
	}
	return len(videos), nil
}

// Create は動画を登録する。
func (s *Service) Create(ctx context.Context, in Input) (*View, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.loadVideos(ctx)
	if err != nil {
		return nil, err
	}
	v := model.VideoItem{
		ID:        uuid.New().String(),
		CreatedAt: s.clock.TodayString(),
		Author:    s.teacherName,
	}
	applyInput(&v, in)
	if err := s.saveVideos(ctx, append(videos, v)); err != nil {
		return nil, err
	}

	slog.Info("video created", slog.String("video_id", v.ID), slog.String("school", v.School), slog.Int("week", v.Week))
	view := toView(v)
	return &view, nil
}

// Update は動画を更新する。作成日と著者は変わらない。
func (s *Service) Update(ctx context.Context, id string, in Input) (*View, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.loadVideos(ctx)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		if videos[i].ID != id {
			continue
		}
		applyInput(&videos[i], in)
		if err := s.saveVideos(ctx, videos); err != nil {
			return nil, err
		}
		view := toView(videos[i])
		return &view, nil
	}
	return nil, model.NewNotFoundError("영상", id)
}

// Delete は動画を削除し、その動画へのコメントと返信も削除する。
// コメントの削除に失敗した場合はログのみ残す。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.loadVideos(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range videos {
		if videos[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.NewNotFoundError("영상", id)
	}
	if err := s.saveVideos(ctx, append(videos[:idx], videos[idx+1:]...)); err != nil {
		return err
	}

	s.deleteThreads(ctx, id)
	return nil
}

func (s *Service) validate(in Input) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	return checkVideoURL(s.guard, in.VideoURL)
}

func applyInput(v *model.VideoItem, in Input) {
	v.Title = in.Title
	v.Description = in.Description
	v.School = in.School
	v.Grade = in.Grade
	v.Week = in.Week
	v.VideoURL = in.VideoURL
	v.IsPublic = in.IsPublic
	v.ValidUntil = in.ValidUntil
}

func toView(v model.VideoItem) View {
	return View{VideoItem: v, EmbedURL: EmbedURL(v.VideoURL)}
}

func toViews(videos []model.VideoItem) []View {
	out := make([]View, 0, len(videos))
	for _, v := range videos {
		out = append(out, toView(v))
	}
	return out
}

func (s *Service) loadVideos(ctx context.Context) ([]model.VideoItem, error) {
	videos, err := store.Load(ctx, s.store, store.KeyVideos, []model.VideoItem{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return videos, nil
}

func (s *Service) saveVideos(ctx context.Context, videos []model.VideoItem) error {
	if err := store.Save(ctx, s.store, store.KeyVideos, videos); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

// Package student は管理者による受講生アカウントの管理を提供する。
// 管理者アカウントはこのパッケージの操作対象にならない。
package student

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/repository"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
)

// Input は受講生アカウントの入力。
type Input struct {
	Username string `json:"username" validate:"notblank,max=50"`
	Password string `json:"password" validate:"notblank,max=100"`
	Name     string `json:"name" validate:"notblank,max=50"`
	School   string `json:"school" validate:"notblank"`
	Grade    int    `json:"grade" validate:"min=1,max=3"`
	Academy  string `json:"academy"`
	Schedule string `json:"schedule" validate:"notblank"`
}

// Account はパスワードを含まない受講生アカウント。
type Account struct {
	ID       string               `json:"id"`
	Username string               `json:"username"`
	Profile  model.StudentProfile `json:"profile"`
}

// GradeCounts は学年ごとの受講生数。
type GradeCounts map[int]int

// Service は受講生アカウントに関するビジネスロジックを提供する。
type Service struct {
	mu          sync.Mutex
	store       *store.Store
	sessionRepo repository.SessionRepository
}

// NewService はServiceを生成する。
func NewService(st *store.Store, sessionRepo repository.SessionRepository) *Service {
	return &Service{store: st, sessionRepo: sessionRepo}
}

// List は受講生アカウントを一覧で返す。
func (s *Service) List(ctx context.Context) ([]Account, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []Account{}
	for _, u := range users {
		if u.IsStudent() {
			out = append(out, toAccount(u))
		}
	}
	return out, nil
}

// Counts は受講生の総数と学年ごとの人数を返す。
func (s *Service) Counts(ctx context.Context) (int, GradeCounts, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return 0, nil, err
	}
	byGrade := GradeCounts{}
	for _, a := range accounts {
		byGrade[a.Profile.Grade]++
	}
	return len(accounts), byGrade, nil
}

// Create は受講生アカウントを作成する。ユーザー名は全ユーザーで一意。
func (s *Service) Create(ctx context.Context, in Input) (*Account, error) {
	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if usernameTaken(users, in.Username, "") {
		return nil, model.NewDuplicateUsernameError(in.Username)
	}

	u := model.User{ID: uuid.New().String(), Role: model.RoleStudent}
	applyInput(&u, in)
	if err := s.save(ctx, append(users, u)); err != nil {
		return nil, err
	}

	slog.Info("student created", slog.String("user_id", u.ID), slog.String("username", u.Username))
	a := toAccount(u)
	return &a, nil
}

// Update は受講生アカウントを更新する。
func (s *Service) Update(ctx context.Context, id string, in Input) (*Account, error) {
	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfStudent(users, id)
	if idx < 0 {
		return nil, model.NewNotFoundError("학생", id)
	}
	if usernameTaken(users, in.Username, id) {
		return nil, model.NewDuplicateUsernameError(in.Username)
	}

	applyInput(&users[idx], in)
	if err := s.save(ctx, users); err != nil {
		return nil, err
	}
	a := toAccount(users[idx])
	return &a, nil
}

// Delete は受講生アカウントを削除し、そのユーザーのセッションも無効にする。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOfStudent(users, id)
	if idx < 0 {
		return model.NewNotFoundError("학생", id)
	}
	if err := s.save(ctx, append(users[:idx], users[idx+1:]...)); err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, id); err != nil {
		slog.Error("failed to delete sessions of removed student",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
	}
	slog.Info("student deleted", slog.String("user_id", id))
	return nil
}

func normalize(in Input) Input {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Academy = strings.TrimSpace(in.Academy)
	return in
}

func applyInput(u *model.User, in Input) {
	u.Username = in.Username
	u.Password = in.Password
	u.Profile = &model.StudentProfile{
		Name:     in.Name,
		School:   in.School,
		Grade:    in.Grade,
		Academy:  in.Academy,
		Schedule: in.Schedule,
	}
}

func toAccount(u model.User) Account {
	a := Account{ID: u.ID, Username: u.Username}
	if u.Profile != nil {
		a.Profile = *u.Profile
	}
	return a
}

// indexOfStudent は受講生アカウントの位置を返す。管理者は対象外。
func indexOfStudent(users []model.User, id string) int {
	for i := range users {
		if users[i].ID == id && users[i].Role == model.RoleStudent {
			return i
		}
	}
	return -1
}

func usernameTaken(users []model.User, username, exceptID string) bool {
	for _, u := range users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Service) load(ctx context.Context) ([]model.User, error) {
	users, err := store.Load(ctx, s.store, store.KeyUsers, []model.User{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return users, nil
}

func (s *Service) save(ctx context.Context, users []model.User) error {
	if err := store.Save(ctx, s.store, store.KeyUsers, users); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

// Package auth はID/パスワードによる認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/repository"
	"github.com/hitoshi/dongin/internal/store"
)

// LoginRecorder はログイン結果の記録先（メトリクス）。
type LoginRecorder interface {
	RecordLogin(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	store       *store.Store
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	recorder    LoginRecorder
	now         func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	st *store.Store,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
	recorder LoginRecorder,
) *Service {
	return &Service{
		store:       st,
		sessionRepo: sessionRepo,
		config:      config,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Authenticate はユーザー名とパスワードが完全一致するユーザーを返す。
// 一致しない場合はどちらが誤っているかを明かさない単一のエラーを返す。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	users, err := store.Load(ctx, s.store, store.KeyUsers, []model.User{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}

	for i := range users {
		if users[i].Username == username && users[i].Password == password {
			u := users[i]
			return &u, nil
		}
	}
	return nil, model.NewInvalidCredentialsError()
}

// Login は認証に成功したユーザーにセッションを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if model.HasCode(err, model.ErrCodeInvalidCredentials) {
			s.record("failure")
			slog.Info("login rejected", slog.String("username", username))
		}
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.record("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
// セッションが存在しない・期限切れ・ユーザー削除済みの場合は(nil, nil)を返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	users, err := store.Load(ctx, s.store, store.KeyUsers, []model.User{})
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for i := range users {
		if users[i].ID == session.UserID {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

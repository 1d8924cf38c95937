package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/dongin/internal/model"
)

// 有効期限の判定はDBの時計で行う。複数プロセスで時計がずれても結果が揃う。
const (
	sessionInsertSQL = `INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	sessionSelectSQL = `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1 AND expires_at > now()`
	sessionDeleteSQL = `DELETE FROM sessions WHERE id = $1`
	sessionPurgeSQL  = `DELETE FROM sessions WHERE user_id = $1`
	sessionExpireSQL = `DELETE FROM sessions WHERE expires_at <= now()`
)

// PostgresSessionRepo はsessionsテーブルにログインセッションを保存する。
// postgresバックエンドではserveとworkerがこのテーブルを共有する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.exec(ctx, "create session", sessionInsertSQL, s.ID, s.UserID, s.ExpiresAt, s.CreatedAt)
	return err
}

// FindByID は有効なセッションを返す。存在しないか期限切れならnil。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx, sessionSelectSQL, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "delete session", sessionDeleteSQL, id)
	return err
}

// DeleteByUserID は受講生アカウント削除時にそのユーザーの全セッションを失効させる。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.exec(ctx, "delete user sessions", sessionPurgeSQL, userID)
	return err
}

func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return r.exec(ctx, "delete expired sessions", sessionExpireSQL)
}

// exec は更新系SQLを実行して影響行数を返す。
func (r *PostgresSessionRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: rows affected: %w", op, err)
	}
	return n, nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)

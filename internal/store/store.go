// Package store はJSONコレクションをキー単位で読み書きするローカルレコードストアを提供する。
//
// 読み書きには2系統ある。
//   - Get / Set: 失敗時はログを出してデフォルト値を返す・何もしない（利用者にはエラーを見せない）。
//   - Load / Save: 失敗を *StorageError として呼び出し元に返す。状態遷移を伴うサービスはこちらを使い、
//     保存に失敗した遷移を成功扱いにしない。
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/dongin/internal/repository"
)

// ErrorRecorder はストレージエラーの記録先（メトリクス）を抽象化する。
type ErrorRecorder interface {
	RecordStorageError(op string)
}

// StorageError はシリアライズまたはバックエンドの失敗を表す。
type StorageError struct {
	Op  string // read, write, decode, encode, delete
	Key string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store はRecordRepositoryの上に型付きの読み書きを提供する。
type Store struct {
	repo     repository.RecordRepository
	logger   *slog.Logger
	recorder ErrorRecorder
}

// Option はStoreの任意設定。
type Option func(*Store)

// WithErrorRecorder はストレージエラーの記録先を設定する。
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New はStoreを生成する。loggerがnilの場合はslog.Default()を使用する。
func New(repo repository.RecordRepository, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load は指定キーのコレクションを読み込む。キーが存在しない場合はdefを返す。
func Load[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	data, found, err := s.repo.Read(ctx, key)
	if err != nil {
		return def, s.fail("read", key, err)
	}
	if !found {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, s.fail("decode", key, err)
	}
	return v, nil
}

// Save は指定キーにコレクション全体を書き込む。
func Save[T any](ctx context.Context, s *Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return s.fail("encode", key, err)
	}
	if err := s.repo.Write(ctx, key, data); err != nil {
		return s.fail("write", key, err)
	}
	return nil
}

// Get は指定キーのコレクションを読み込む。
// 読み込みや解析に失敗した場合はログを出してdefを返す。
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	v, err := Load(ctx, s, key, def)
	if err != nil {
		return def
	}
	return v
}

// Set は指定キーにコレクション全体を書き込む。
// 失敗した場合はログを出して何もしない。
func Set[T any](ctx context.Context, s *Store, key string, v T) {
	_ = Save(ctx, s, key, v)
}

// Exists は指定キーが存在するかを返す。
// 読み込みに失敗した場合は存在するものとして扱い、既存データの上書きを避ける。
func (s *Store) Exists(ctx context.Context, key string) bool {
	_, found, err := s.repo.Read(ctx, key)
	if err != nil {
		s.fail("read", key, err)
		return true
	}
	return found
}

// Remove は指定キーを削除する。失敗した場合はログを出して何もしない。
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.fail("delete", key, err)
	}
}

// Clear はセッションスコープの全キーを削除する。ユーザー一覧は残す。
func (s *Store) Clear(ctx context.Context) {
	for _, key := range SessionKeys {
		s.Remove(ctx, key)
	}
}

// fail はストレージエラーをログとメトリクスに記録し、StorageErrorを返す。
func (s *Store) fail(op, key string, err error) error {
	s.logger.Error("storage operation failed",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	if s.recorder != nil {
		s.recorder.RecordStorageError(op)
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

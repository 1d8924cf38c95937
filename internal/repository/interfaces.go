// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/dongin/internal/model"
)

// RecordRepository はキー単位でJSONコレクションを保持するストレージ境界。
// 値はJSONシリアライズ済みのバイト列としてそのまま保存する。
type RecordRepository interface {
	// Read は指定キーの値を取得する。キーが存在しない場合はfound=falseを返す。
	Read(ctx context.Context, key string) (data []byte, found bool, err error)

	// Write は指定キーの値を丸ごと上書きする。
	Write(ctx context.Context, key string, data []byte) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRecordRepo はPostgreSQLのrecordsテーブルを使用したレコードリポジトリ。
// 1キー = 1行で、コレクション全体をJSONBとして保持する。
type PostgresRecordRepo struct {
	db *sql.DB
}

// NewPostgresRecordRepo はPostgresRecordRepoを生成する。
func NewPostgresRecordRepo(db *sql.DB) *PostgresRecordRepo {
	return &PostgresRecordRepo{db: db}
}

// Read は指定キーの値を取得する。キーが存在しない場合はfound=falseを返す。
func (r *PostgresRecordRepo) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE key = $1`,
		key,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}

	return data, true, nil
}

// Write は指定キーの値を丸ごと上書きする。
// lib/pqは[]byteをbyteaとして送るため、JSONB列には文字列で渡す。
func (r *PostgresRecordRepo) Write(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *PostgresRecordRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RecordRepository = (*PostgresRecordRepo)(nil)

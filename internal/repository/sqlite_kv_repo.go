package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteKVSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteKVRepo は組み込みSQLiteを使用したKVStore。
// 単一プロセス構成で外部DBを用意せずに永続化する場合に使用する。
type SQLiteKVRepo struct {
	db *sql.DB
}

// OpenSQLiteKVRepo はSQLiteファイルを開き、スキーマを作成する。
func OpenSQLiteKVRepo(path string) (*SQLiteKVRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteKVSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}

	return &SQLiteKVRepo{db: db}, nil
}

// Get はキーの値を取得する。
func (r *SQLiteKVRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`,
		key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, nil
}

// Set はキーに値を保存する。
func (r *SQLiteKVRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES (?, ?, unixepoch())
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Delete はキーを削除する。
func (r *SQLiteKVRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

// Ping はDBへの疎通を確認する。
func (r *SQLiteKVRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB は保持期間切れエントリの削除ジョブ用に下層のDB接続を返す。
func (r *SQLiteKVRepo) DB() *sql.DB {
	return r.db
}

// Close はDB接続を閉じる。
func (r *SQLiteKVRepo) Close() error {
	return r.db.Close()
}

// compile-time interface check
var _ KVStore = (*SQLiteKVRepo)(nil)

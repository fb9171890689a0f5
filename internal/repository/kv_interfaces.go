// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"
)

// ErrKeyNotFound はキーが存在しないことを示す。
// 呼び出し側は「未設定（デフォルト値を使う）」として扱う。
var ErrKeyNotFound = errors.New("key not found")

// KVStore は文字列値のキーバリューストアのインターフェース。
// 書き込みは後勝ちで、読み込みは常に最新の値を返す（キャッシュ層を持たない）。
type KVStore interface {
	// Get はキーの値を取得する。存在しない場合はErrKeyNotFoundを返す。
	Get(ctx context.Context, key string) (string, error)
	// Set はキーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error
	// Delete はキーを削除する。存在しないキーの削除はエラーにしない。
	Delete(ctx context.Context, key string) error
}

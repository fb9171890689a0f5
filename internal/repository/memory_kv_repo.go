package repository

import (
	"context"
	"sync"
)

// MemoryKVRepo はプロセス内メモリを使用したKVStore。
// 開発環境とテストで使用する。
type MemoryKVRepo struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKVRepo はMemoryKVRepoを生成する。
func NewMemoryKVRepo() *MemoryKVRepo {
	return &MemoryKVRepo{data: make(map[string]string)}
}

// Get はキーの値を取得する。
func (r *MemoryKVRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// Set はキーに値を保存する。
func (r *MemoryKVRepo) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
	return nil
}

// Delete はキーを削除する。
func (r *MemoryKVRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}

// Len は保持しているキー数を返す。テスト用。
func (r *MemoryKVRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// compile-time interface check
var _ KVStore = (*MemoryKVRepo)(nil)

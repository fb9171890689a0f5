// Package sessionstore は永続KVストア上のセッションIDとテーマ設定の読み書きを提供する。
//
// キーはクライアントIDで名前空間を分け、ブラウザごとのストレージと同じ単位で保持する。
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/repository"
)

const (
	// ThemeKey はテーマ設定のキー。
	ThemeKey = "theme"
	// IdentityKey はシリアライズされたSessionIdentityのキー。
	IdentityKey = "user_session"
)

// Adapter はKVStoreをラップし、SessionIdentityとテーマ設定を型付きで読み書きする。
type Adapter struct {
	store     repository.KVStore
	namespace string
}

// New はAdapterを生成する。namespaceには通常クライアントIDを渡す。
func New(store repository.KVStore, namespace string) *Adapter {
	return &Adapter{store: store, namespace: namespace}
}

func (a *Adapter) key(name string) string {
	if a.namespace == "" {
		return name
	}
	return a.namespace + ":" + name
}

// LoadIdentity は保存されたSessionIdentityを返す。
// 未保存の場合は(nil, nil)を返す。
// 壊れたレコードはセッションなしとして扱い、エラーを返す。
func (a *Adapter) LoadIdentity(ctx context.Context) (*model.SessionIdentity, error) {
	raw, err := a.store.Get(ctx, a.key(IdentityKey))
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session identity: %w", err)
	}

	var identity model.SessionIdentity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, fmt.Errorf("failed to decode session identity: %w", err)
	}
	return &identity, nil
}

// SaveIdentity はSessionIdentityをJSONとして保存する。
func (a *Adapter) SaveIdentity(ctx context.Context, identity model.SessionIdentity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode session identity: %w", err)
	}
	if err := a.store.Set(ctx, a.key(IdentityKey), string(data)); err != nil {
		return fmt.Errorf("failed to save session identity: %w", err)
	}
	return nil
}

// ClearIdentity はSessionIdentityを削除する。
func (a *Adapter) ClearIdentity(ctx context.Context) error {
	if err := a.store.Delete(ctx, a.key(IdentityKey)); err != nil {
		return fmt.Errorf("failed to clear session identity: %w", err)
	}
	return nil
}

// LoadTheme は保存されたテーマを返す。未保存の場合はThemeLightを返す。
func (a *Adapter) LoadTheme(ctx context.Context) (model.Theme, error) {
	raw, err := a.store.Get(ctx, a.key(ThemeKey))
	if errors.Is(err, repository.ErrKeyNotFound) {
		return model.ThemeLight, nil
	}
	if err != nil {
		return model.ThemeLight, fmt.Errorf("failed to load theme: %w", err)
	}
	return model.ParseTheme(raw), nil
}

// SaveTheme はテーマを保存する。
func (a *Adapter) SaveTheme(ctx context.Context, theme model.Theme) error {
	if err := a.store.Set(ctx, a.key(ThemeKey), string(theme)); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

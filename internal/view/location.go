package view

import (
	"context"
	"strings"
	"sync"
)

// Listener はフラグメント変更時に呼ばれるハンドラー。
type Listener func(ctx context.Context)

// Location はルーティングキーとなるURLフラグメントを保持する。
// 値が変わった場合のみ、登録順にリスナーを呼び出す。
type Location struct {
	mu        sync.Mutex
	fragment  string
	listeners []Listener
}

// NewLocation は初期フラグメントを持つLocationを生成する。
func NewLocation(initial string) *Location {
	return &Location{fragment: Normalize(initial)}
}

// Normalize は先頭の#を取り除く。
func Normalize(fragment string) string {
	return strings.TrimPrefix(fragment, "#")
}

// Fragment は現在のフラグメントを返す。
func (l *Location) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

// OnChange はリスナーを登録する。
func (l *Location) OnChange(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Set はフラグメントを更新する。値が変化した場合はtrueを返し、
// リスナーを登録順に同期的に呼び出す。
func (l *Location) Set(ctx context.Context, fragment string) bool {
	fragment = Normalize(fragment)

	l.mu.Lock()
	if l.fragment == fragment {
		l.mu.Unlock()
		return false
	}
	l.fragment = fragment
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}
	return true
}

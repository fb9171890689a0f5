// Package route はナビゲーション可能なルートの静的テーブルを提供する。
package route

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hitoshi/appshell/internal/model"
)

// ErrNotFound はフラグメントIDに一致するルートが存在しないことを示す。
var ErrNotFound = errors.New("route not found")

// Table は順序付きのルート定義テーブル。
// 生成後は不変で、複数のgoroutineから安全に参照できる。
type Table struct {
	routes []model.RouteDescriptor
	byID   map[string]int
}

// NewTable はルート定義からTableを生成する。
// IDの重複、空ID、フラグメントとして使えない文字（#、空白）を含むIDはエラーとする。
func NewTable(routes []model.RouteDescriptor) (*Table, error) {
	t := &Table{
		routes: make([]model.RouteDescriptor, len(routes)),
		byID:   make(map[string]int, len(routes)),
	}
	copy(t.routes, routes)

	for i, r := range t.routes {
		if err := validateID(r.ID); err != nil {
			return nil, fmt.Errorf("invalid route at index %d: %w", i, err)
		}
		if r.ContentLocator == "" {
			return nil, fmt.Errorf("route %q has empty content locator", r.ID)
		}
		if _, dup := t.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate route id: %q", r.ID)
		}
		t.byID[r.ID] = i
	}

	return t, nil
}

// MustNewTable はNewTableと同じだが、エラー時にpanicする。
// コンパイル時に定義されたテーブルの初期化に使用する。
func MustNewTable(routes []model.RouteDescriptor) *Table {
	t, err := NewTable(routes)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve はフラグメントIDに完全一致するルートを返す。
// 見つからない場合はErrNotFoundを返す。
func (t *Table) Resolve(fragmentID string) (model.RouteDescriptor, error) {
	i, ok := t.byID[fragmentID]
	if !ok {
		return model.RouteDescriptor{}, ErrNotFound
	}
	return t.routes[i], nil
}

// Routes は定義順のルート一覧のコピーを返す。
func (t *Table) Routes() []model.RouteDescriptor {
	out := make([]model.RouteDescriptor, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len はルート数を返す。
func (t *Table) Len() int {
	return len(t.routes)
}

func validateID(id string) error {
	if id == "" {
		return errors.New("empty route id")
	}
	if strings.ContainsRune(id, '#') {
		return fmt.Errorf("route id %q contains '#'", id)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("route id %q contains whitespace", id)
	}
	return nil
}

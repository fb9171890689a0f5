// Package router はURLフラグメントをルート定義に対応付け、
// ナビゲーションの強調表示、ページタイトル、コンテンツ読み込みを制御する。
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/appshell/internal/content"
	"github.com/hitoshi/appshell/internal/metrics"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/view"
)

// State はナビゲーション状態。ルーターのみが更新し、永続化しない。
type State struct {
	CurrentRouteID string
}

// HasRoute は現在のルートが決まっているかを返す。
func (s State) HasRoute() bool {
	return s.CurrentRouteID != ""
}

// Transition はフラグメントから次の状態と描画指示を求める純粋関数。
// 空のフラグメントはdefaultRouteとして扱う。
// 解決できない場合は状態を変えず、未定義ルートのパネルのみを表示する。
func Transition(state State, table *route.Table, fragment, defaultRoute string) (State, []view.Instruction) {
	id := view.Normalize(fragment)
	if id == "" {
		id = defaultRoute
	}

	desc, err := table.Resolve(id)
	if err != nil {
		return state, []view.Instruction{
			view.ShowPanelInstruction{HTML: view.NotFoundPanel(), State: view.ContentNotFound},
		}
	}

	return State{CurrentRouteID: desc.ID}, []view.Instruction{
		view.SetActiveNavInstruction{ID: desc.ID},
		view.SetTitleInstruction{Title: desc.Label},
		view.LoadContentInstruction{Locator: desc.ContentLocator},
	}
}

// ContentLoader はロケーターをコンテンツ領域に読み込む。
type ContentLoader interface {
	Load(ctx context.Context, container content.Container, locator string) content.Outcome
}

// Router は1ページ分のルーティングを担う。
type Router struct {
	table        *route.Table
	location     *view.Location
	doc          *view.Document
	loader       ContentLoader
	defaultRoute string
	recorder     metrics.Recorder
	logger       *slog.Logger

	// mu は変更イベントの発火順に遷移を適用するためのロック。
	// コンテンツ取得中は保持しない。
	mu    sync.Mutex
	state State
}

// New はRouterを生成する。recorderがnilの場合は記録しない。
func New(
	table *route.Table,
	location *view.Location,
	doc *view.Document,
	loader ContentLoader,
	defaultRoute string,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Router {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Router{
		table:        table,
		location:     location,
		doc:          doc,
		loader:       loader,
		defaultRoute: defaultRoute,
		recorder:     recorder,
		logger:       logger,
	}
}

// HandleRouteChange は現在のフラグメントを解決して描画に反映し、
// 解決できた場合はコンテンツを読み込む。
func (r *Router) HandleRouteChange(ctx context.Context) {
	// 1. 遷移を求めて同期的な指示を適用する
	r.mu.Lock()
	fragment := r.location.Fragment()
	next, instructions := Transition(r.state, r.table, fragment, r.defaultRoute)
	r.state = next
	loads := r.doc.Apply(instructions)
	r.mu.Unlock()

	if len(loads) == 0 {
		r.logger.Info("未定義のルートが要求されました",
			slog.String("fragment", fragment),
		)
		r.recorder.RecordRouteChange(metrics.RouteNotFound)
		return
	}
	r.recorder.RecordRouteChange(metrics.RouteResolved)

	// 2. コンテンツを読み込む。完了順は保証しない
	for _, load := range loads {
		r.loader.Load(ctx, r.doc, load.Locator)
	}
}

// Current は現在のルートIDを返す。未決定の場合はfalse。
func (r *Router) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.CurrentRouteID, r.state.HasRoute()
}

// Package shell はクライアントごとのページインスタンスを組み立て、
// テーマ切替やサイドバー開閉などのイベントを各コントローラーに配線する。
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/appshell/internal/identity"
	"github.com/hitoshi/appshell/internal/metrics"
	"github.com/hitoshi/appshell/internal/repository"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/router"
	"github.com/hitoshi/appshell/internal/session"
	"github.com/hitoshi/appshell/internal/sessionstore"
	"github.com/hitoshi/appshell/internal/view"
)

// ErrPageClosed はCloseされたページへの操作を表す。
var ErrPageClosed = errors.New("page is closed")

// Deps はページインスタンスの生成に必要な共有依存関係。
type Deps struct {
	Table    *route.Table
	Store    repository.KVStore
	Loader   router.ContentLoader
	Decoder  *identity.Decoder
	Verifier identity.Verifier

	// DefaultRoute は空のフラグメントをルーターが解決するときのルートID。
	DefaultRoute string
	// HomeRoute はシェル表示時に空のフラグメントへ設定するルートID。
	HomeRoute string

	DiscardStaleLoads bool
	Recorder          metrics.Recorder
	Logger            *slog.Logger
}

// State はクライアントに返すページ状態。
type State struct {
	Fragment string `json:"fragment"`
	view.Snapshot
}

// Page は1クライアント分のページ。Document、Location、Router、
// セッションコントローラーを所有する。
type Page struct {
	clientID string
	doc      *view.Document
	location *view.Location
	router   *router.Router
	session  *session.Controller
	prefs    *sessionstore.Adapter
	recorder metrics.Recorder
	logger   *slog.Logger

	credentials chan session.CredentialMessage
	done        <-chan struct{}
	cancel      context.CancelFunc

	// initMu はInitを直列化する。成功するまでinitializedは立たない
	initMu      sync.Mutex
	initialized bool

	mu       sync.Mutex
	lastSeen time.Time
	holds    int
}

// NewPage はページを組み立てる。Initを呼ぶまでセッションは確認しない。
// 認証メッセージの受信はCloseまで続く。
func NewPage(clientID, fragment string, deps Deps) *Page {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	logger := deps.Logger.With(slog.String("client_id", clientID))

	doc := view.NewDocument(view.Options{DiscardStaleLoads: deps.DiscardStaleLoads})
	loc := view.NewLocation(fragment)
	prefs := sessionstore.New(deps.Store, clientID)

	rt := router.New(deps.Table, loc, doc, deps.Loader, deps.DefaultRoute, recorder, logger)

	// ログアウト中はフラグメントが変わってもコンテンツを取得しない
	loc.OnChange(func(ctx context.Context) {
		if doc.ShellVisible() {
			rt.HandleRouteChange(ctx)
		}
	})

	ctrl := session.NewController(session.Config{
		Store:     prefs,
		Decoder:   deps.Decoder,
		Verifier:  deps.Verifier,
		Document:  doc,
		Location:  loc,
		Table:     deps.Table,
		Router:    rt,
		HomeRoute: deps.HomeRoute,
		Recorder:  recorder,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		clientID:    clientID,
		doc:         doc,
		location:    loc,
		router:      rt,
		session:     ctrl,
		prefs:       prefs,
		recorder:    recorder,
		logger:      logger,
		credentials: make(chan session.CredentialMessage),
		done:        ctx.Done(),
		cancel:      cancel,
		lastSeen:    time.Now(),
	}
	go ctrl.Listen(ctx, p.credentials)

	return p
}

// ClientID はページを所有するクライアントのIDを返す。
func (p *Page) ClientID() string {
	return p.clientID
}

// Init は保存されたテーマを適用し、セッションを確認する。
// 成功した後の呼び出しは何もしない。失敗した場合は次の呼び出しで再試行する。
func (p *Page) Init(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.initialized {
		return nil
	}

	// 1. テーマを適用する。読み込めない場合はデフォルトのまま続行する
	theme, err := p.prefs.LoadTheme(ctx)
	if err != nil {
		p.logger.Warn("テーマ設定の読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
	}
	p.doc.SetTheme(theme)

	// 2. セッションを確認する
	if err := p.session.CheckSession(ctx); err != nil {
		return err
	}

	p.initialized = true
	return nil
}

// Navigate はフラグメントを変更する。値が変わった場合はルーターが反応する。
// ナビゲーションを選択するとサイドバーは閉じる。
func (p *Page) Navigate(ctx context.Context, fragment string) {
	p.doc.SetSidebarOpen(false)
	p.location.Set(ctx, fragment)
}

// ToggleTheme はテーマを切り替えて保存する。
func (p *Page) ToggleTheme(ctx context.Context) error {
	next := p.doc.Theme().Toggle()
	p.doc.SetTheme(next)
	p.recorder.RecordThemeToggle()

	if err := p.prefs.SaveTheme(ctx, next); err != nil {
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	return nil
}

// ToggleSidebar はサイドバーの開閉を切り替える。
func (p *Page) ToggleSidebar() {
	p.doc.SetSidebarOpen(!p.doc.SidebarOpen())
}

// CloseSidebar はサイドバーを閉じる。オーバーレイのクリックに対応する。
func (p *Page) CloseSidebar() {
	p.doc.SetSidebarOpen(false)
}

// SignIn は認証メッセージをセッションコントローラーに渡し、処理結果を待つ。
// ページがCloseされている場合はErrPageClosedを返す。
func (p *Page) SignIn(ctx context.Context, msg session.CredentialMessage) error {
	select {
	case <-p.done:
		return ErrPageClosed
	default:
	}

	reply := make(chan error, 1)
	msg.Reply = reply

	select {
	case p.credentials <- msg:
	case <-p.done:
		return ErrPageClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-p.done:
		return ErrPageClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignOut はセッションを終了する。
func (p *Page) SignOut(ctx context.Context) error {
	return p.session.SignOut(ctx)
}

// CurrentRoute は現在のルートIDを返す。
func (p *Page) CurrentRoute() (string, bool) {
	return p.router.Current()
}

// Snapshot は現在のページ状態を返す。
func (p *Page) Snapshot() State {
	return State{
		Fragment: p.location.Fragment(),
		Snapshot: p.doc.Snapshot(),
	}
}

// Close は認証メッセージの受信を停止する。
func (p *Page) Close() {
	p.cancel()
}

// Hold は接続中のページをReapの対象から外す。返された関数で解除する。
// 解除した時点を最終操作時刻とする。
func (p *Page) Hold() (release func()) {
	p.mu.Lock()
	p.holds++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.holds--
			p.lastSeen = time.Now()
		})
	}
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
}

// idle は保持されておらず、cutoffより前から操作がないかを返す。
func (p *Page) idle(cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holds == 0 && p.lastSeen.Before(cutoff)
}

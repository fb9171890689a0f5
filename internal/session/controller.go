// Package session はサインイン・サインアウトの遷移と、
// セッションの有無に応じたランディング/シェルの表示切替を制御する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/appshell/internal/identity"
	"github.com/hitoshi/appshell/internal/metrics"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/view"
)

var (
	// ErrInvalidMessage は認証メッセージの形式が不正なことを示す。
	ErrInvalidMessage = errors.New("invalid credential message")
	// ErrVerificationFailed はIDトークンの署名検証に失敗したことを示す。
	ErrVerificationFailed = errors.New("identity token verification failed")
)

// Store はセッションIDの永続化を行う。
type Store interface {
	LoadIdentity(ctx context.Context) (*model.SessionIdentity, error)
	SaveIdentity(ctx context.Context, ident model.SessionIdentity) error
	ClearIdentity(ctx context.Context) error
}

// RouteHandler は現在のフラグメントに対するルーティングを実行する。
type RouteHandler interface {
	HandleRouteChange(ctx context.Context)
}

// Config はControllerの依存関係。
type Config struct {
	Store    Store
	Decoder  *identity.Decoder
	Verifier identity.Verifier
	Document *view.Document
	Location *view.Location
	Table    *route.Table
	Router   RouteHandler
	// HomeRoute はシェル表示時にフラグメントが空の場合に設定するルートID。
	HomeRoute string
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// Controller はセッションの確認とサインイン/サインアウトを担う。
// 表示はセッションの有無のみから決まる。
type Controller struct {
	cfg Config
	mu  sync.Mutex
}

// NewController はControllerを生成する。
func NewController(cfg Config) *Controller {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NopRecorder{}
	}
	if cfg.Decoder == nil {
		cfg.Decoder = identity.NewDecoder()
	}
	return &Controller{cfg: cfg}
}

// CheckSession は保存されたセッションを読み込み、表示を切り替える。
// セッションがある場合はシェルを表示してルーティングを開始する。
// ない場合はランディングを表示し、フラグメントを消去する。
func (c *Controller) CheckSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkSession(ctx)
}

func (c *Controller) checkSession(ctx context.Context) error {
	ident, err := c.cfg.Store.LoadIdentity(ctx)
	if err != nil {
		// 読み込めないセッションはセッションなしとして表示する
		c.cfg.Logger.Warn("セッションの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		c.showLanding(ctx)
		return fmt.Errorf("failed to check session: %w", err)
	}

	if ident == nil {
		c.showLanding(ctx)
		return nil
	}

	c.showShell(ctx, *ident)
	return nil
}

func (c *Controller) showLanding(ctx context.Context) {
	doc := c.cfg.Document
	doc.SetLoggedIn(false)
	doc.SetProfile(nil)
	doc.SetSidebarOpen(false)
	doc.SetTitle("")
	doc.SetContent("", view.ContentEmpty)
	c.cfg.Location.Set(ctx, "")
}

func (c *Controller) showShell(ctx context.Context, ident model.SessionIdentity) {
	// 1. シェルを表示してプロフィールとナビゲーションを描画する
	doc := c.cfg.Document
	doc.SetLoggedIn(true)
	doc.SetProfile(&view.Profile{
		DisplayName: ident.DisplayName,
		Email:       ident.Email,
		AvatarURL:   ident.AvatarURL,
	})
	doc.SetNav(c.cfg.Table.Routes())

	// 2. ルーティングを開始する。空のフラグメントは変更イベント経由でルーターに届く
	if c.cfg.Location.Fragment() == "" {
		if c.cfg.Location.Set(ctx, c.cfg.HomeRoute) {
			return
		}
	}
	c.cfg.Router.HandleRouteChange(ctx)
}

// CompleteSignIn はIDトークンをデコードしてセッションを保存し、表示を更新する。
// 署名は検証しない。Verifierが設定されている場合のみ検証する。
// デコードや保存の失敗は呼び出し元に返す。
func (c *Controller) CompleteSignIn(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. デコード
	claims, err := c.cfg.Decoder.Decode(token)
	if err != nil {
		c.cfg.Recorder.RecordSignIn(metrics.SignInMalformed)
		return err
	}

	// 2. 検証（任意）
	if c.cfg.Verifier != nil {
		if err := c.cfg.Verifier.Verify(ctx, token); err != nil {
			c.cfg.Recorder.RecordSignIn(metrics.SignInRejected)
			return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
	}

	// 3. 保存
	ident := claims.SessionIdentity()
	if err := c.cfg.Store.SaveIdentity(ctx, ident); err != nil {
		c.cfg.Recorder.RecordSignIn(metrics.SignInFailed)
		return err
	}

	c.cfg.Recorder.RecordSignIn(metrics.SignInSuccess)
	c.cfg.Logger.Info("サインインしました",
		slog.String("email", ident.Email),
	)

	// 4. 表示を更新する
	return c.checkSession(ctx)
}

// SignOut はセッションを削除し、ランディングに戻す。
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cfg.Store.ClearIdentity(ctx); err != nil {
		return err
	}
	c.cfg.Recorder.RecordSignOut()
	c.cfg.Logger.Info("サインアウトしました")

	return c.checkSession(ctx)
}

package handler

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/appshell/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	ClientCookie      middleware.ClientCookieConfig
	CSRF              middleware.CSRFConfig
	Logger            *slog.Logger

	// ページ
	Pages PageProvider

	// 静的コンテンツ。nilの場合は /views/* を配信しない
	Views fs.FS

	// 運用
	HealthChecker HealthChecker
	Metrics       http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Client → Logging → CSRF → RateLimit(General)
//
// /health と /metrics はクライアントIDを発行しないようチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	shellHandler := NewShellHandler(deps.Pages, logger)
	authHandler := NewAuthHandler(deps.Pages, logger)
	// WebSocketのcredentialイベントもサインイン専用の制限を受ける
	eventHandler := NewEventHandler(deps.Pages, deps.CORSAllowedOrigin, deps.RateLimiter, logger)

	// --- クライアント単位のルート ---
	// ミドルウェアスタック: Client → Logging → CSRF → RateLimit(General)
	// ロギングがclient_idを出力できるよう、Clientを先に適用する
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.ClientCookie))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Route("/api/shell", func(r chi.Router) {
			r.Get("/", shellHandler.GetShell)
			r.Put("/fragment", shellHandler.UpdateFragment)
			r.Post("/theme/toggle", shellHandler.ToggleTheme)
			r.Post("/sidebar/toggle", shellHandler.ToggleSidebar)
			r.Post("/sidebar/close", shellHandler.CloseSidebar)
		})

		r.Route("/auth", func(r chi.Router) {
			// POST /auth/credential - サインイン（サインイン専用レート制限を追加）
			r.With(deps.RateLimiter.SignInMiddleware()).Post("/credential", authHandler.Credential)
			r.Post("/signout", authHandler.SignOut)
		})

		r.Get("/ws", eventHandler.ServeHTTP)

		if deps.Views != nil {
			r.Handle("/views/*", http.FileServer(http.FS(deps.Views)))
		}
	})

	return r
}

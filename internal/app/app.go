package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/appshell/internal/config"
	"github.com/hitoshi/appshell/internal/content"
	"github.com/hitoshi/appshell/internal/database"
	"github.com/hitoshi/appshell/internal/handler"
	"github.com/hitoshi/appshell/internal/identity"
	"github.com/hitoshi/appshell/internal/logger"
	"github.com/hitoshi/appshell/internal/metrics"
	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/security"
	"github.com/hitoshi/appshell/internal/shell"
	"github.com/hitoshi/appshell/internal/worker/cleanup"
	"github.com/hitoshi/appshell/web"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envの読み込み（ファイルがなければ環境変数のみを使う）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store", cfg.StoreDriver),
		slog.String("content_source", cfg.ContentSource),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係。
type server struct {
	handler     http.Handler
	pages       *shell.Registry
	rateLimiter *middleware.RateLimiter
}

// newServer は設定とストアから全依存関係をワイヤリングする。
func newServer(ctx context.Context, cfg *config.Config, store *kvStore) (*server, error) {
	log := slog.Default()

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. コンテンツローダー
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	capability, err := content.ParseCapability(cfg.ContentCapability)
	if err != nil {
		return nil, err
	}
	renderer := content.NewRenderer(capability, security.NewContentSanitizer(), content.NewLuaRunner(log), log)
	loader := content.NewLoader(fetcher, renderer, collector, log)

	// 3. ルート定義（既定ルートが存在することを起動時に確認する）
	table := route.DefaultTable()
	for _, id := range []string{cfg.DefaultRoute, cfg.HomeRoute} {
		if _, err := table.Resolve(id); err != nil {
			return nil, fmt.Errorf("configured route %q: %w", id, err)
		}
	}

	// 4. IDトークン
	deps := shell.Deps{
		Table:             table,
		Store:             store,
		Loader:            loader,
		Decoder:           identity.NewDecoder(),
		DefaultRoute:      cfg.DefaultRoute,
		HomeRoute:         cfg.HomeRoute,
		DiscardStaleLoads: cfg.DiscardStaleLoads,
		Recorder:          collector,
		Logger:            log,
	}
	if cfg.IdentityVerifier == config.VerifierFirebase {
		verifier, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		deps.Verifier = verifier
	}

	// 5. ページレジストリ
	pages := shell.NewRegistry(deps, cfg.PageIdleTTL)

	// 6. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSignIn > 0 {
		rateLimiterCfg.SignInRate = rate.Limit(float64(cfg.RateLimitSignIn) / 60.0)
		rateLimiterCfg.SignInBurst = cfg.RateLimitSignIn
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	routerDeps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ClientCookie: middleware.ClientCookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.ClientCookieMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:        log,
		Pages:         pages,
		Views:         web.Views(),
		HealthChecker: store.health,
		Metrics:       metrics.Handler(reg),
	}

	return &server{
		handler:     handler.NewRouter(routerDeps),
		pages:       pages,
		rateLimiter: rateLimiter,
	}, nil
}

// newFetcher はCONTENT_SOURCEに対応するFetcherを生成する。
func newFetcher(cfg *config.Config) (content.Fetcher, error) {
	if cfg.ContentSource != config.ContentHTTP {
		return content.NewFSFetcher(web.Views()), nil
	}

	if !cfg.BlockPrivateContent {
		client := &http.Client{Timeout: cfg.ContentTimeout}
		return content.NewHTTPFetcher(cfg.ContentBaseURL, client, nil, cfg.ContentMaxSize)
	}

	// ベースURLのポートが80/443以外の場合は許可ポートに加える
	ports := []int{80, 443}
	if u, err := url.Parse(cfg.ContentBaseURL); err == nil && u.Port() != "" {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			ports = append(ports, p)
		}
	}
	guard := security.NewSSRFGuard(ports...)
	return content.NewHTTPFetcher(cfg.ContentBaseURL, guard.NewSafeClient(cfg.ContentTimeout), guard, cfg.ContentMaxSize)
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. ワイヤリング
	srv, err := newServer(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.rateLimiter.Stop()

	// 3. 無操作ページの破棄
	reapInterval := cfg.PageReapInterval
	if reapInterval <= 0 {
		reapInterval = time.Minute
	}
	go srv.pages.StartReaper(ctx, reapInterval)

	// 4. HTTPサーバーの起動
	// WebSocket接続を切らないようWriteTimeoutは設定しない
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// SQL系ストアを開き、保持期間切れエントリの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StoreDriver != config.StorePostgres && cfg.StoreDriver != config.StoreSQLite {
		return fmt.Errorf("worker requires STORE_DRIVER=postgres or sqlite, got %q", cfg.StoreDriver)
	}

	// 1. ストア
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. クリーンアップジョブの初期化
	job := cleanup.NewCleanupJob(store.db, store.dialect, slog.Default())
	if cfg.KVRetentionDays > 0 {
		job.RetentionDays = cfg.KVRetentionDays
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, interval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:12] + "***@..."
	}
	return "***"
}

package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleTTL は無操作のページを破棄するまでの時間。
const DefaultIdleTTL = 30 * time.Minute

// Registry はクライアントIDごとのページを保持する。
// 一定時間操作のないページはReapで破棄する。
type Registry struct {
	deps   Deps
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	pages map[string]*Page
}

// NewRegistry はRegistryを生成する。ttlが0以下の場合はDefaultIdleTTLを使用する。
func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Registry{
		deps:   deps,
		ttl:    ttl,
		now:    time.Now,
		logger: deps.Logger,
		pages:  make(map[string]*Page),
	}
}

// Get はクライアントのページを返す。存在しない場合はfragmentを初期値として生成し、
// 初期化してから返す。初期化のエラーはページとともに返し、次のGetで再試行する。
func (r *Registry) Get(ctx context.Context, clientID, fragment string) (*Page, error) {
	r.mu.Lock()
	p, ok := r.pages[clientID]
	if !ok {
		p = NewPage(clientID, fragment, r.deps)
		r.pages[clientID] = p
		r.logger.Debug("ページを生成しました",
			slog.String("client_id", clientID),
		)
	}
	r.mu.Unlock()

	p.touch(r.now())

	// 初期化はロックの外で行う。同じページへの並行呼び出しは完了まで待つ
	return p, p.Init(ctx)
}

// Lookup は既存のページを返す。生成はしない。
func (r *Registry) Lookup(clientID string) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[clientID]
	return p, ok
}

// Len は保持しているページ数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// Reap はttlを超えて操作のないページを破棄し、破棄した数を返す。
// Holdされているページは対象外。
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Page
	for id, p := range r.pages {
		if p.idle(cutoff) {
			expired = append(expired, p)
			delete(r.pages, id)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.Close()
	}
	return len(expired)
}

// StartReaper はintervalごとにReapを実行する。ctxがキャンセルされると停止し、
// 残っているページをすべて閉じる。
func (r *Registry) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			start := time.Now()
			if n := r.Reap(); n > 0 {
				r.logger.Info("無操作のページを破棄しました",
					slog.Int("reaped", n),
					slog.Int("remaining", r.Len()),
					slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
				)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}
}

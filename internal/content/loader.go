package content

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/appshell/internal/metrics"
	"github.com/hitoshi/appshell/internal/view"
)

// Container は読み込み結果の反映先となるコンテンツ領域。
type Container interface {
	BeginLoad(placeholder string) uint64
	CommitLoad(gen uint64, content string, state view.ContentState, scripts []view.Script) bool
}

// Outcome は1回の読み込みの結果。
type Outcome string

const (
	OutcomeLoaded Outcome = metrics.LoadSuccess
	OutcomeFailed Outcome = metrics.LoadError
	OutcomeStale  Outcome = metrics.LoadStale
)

// Loader はロケーターのペイロードを取得し、コンテンツ領域へ注入する。
// 取得や描画の失敗はエラーパネルとして描画され、呼び出し元には伝播しない。
type Loader struct {
	fetcher  Fetcher
	renderer *Renderer
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewLoader はLoaderを生成する。recorderがnilの場合は記録しない。
func NewLoader(fetcher Fetcher, renderer *Renderer, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Loader{
		fetcher:  fetcher,
		renderer: renderer,
		recorder: recorder,
		logger:   logger,
	}
}

// Load はlocatorを読み込み、containerの内容を置き換える。
// 取得完了前にcontainerは読み込み中表示になる。
// より新しい読み込みが開始されていた場合、結果は破棄されOutcomeStaleを返す。
func (l *Loader) Load(ctx context.Context, container Container, locator string) Outcome {
	start := time.Now()

	// 1. 読み込み中表示に置き換える
	gen := container.BeginLoad(view.LoaderPanel())

	// 2. 取得と描画
	rendered, err := l.fetchAndRender(ctx, locator)
	duration := time.Since(start)
	l.recorder.RecordLoadLatency(duration)

	// 3. 結果をコンテナへ反映する
	var committed bool
	if err != nil {
		l.logger.Error("コンテンツの読み込みに失敗しました",
			slog.String("locator", locator),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		committed = container.CommitLoad(gen, view.ErrorPanel(locator, err), view.ContentError, nil)
	} else {
		committed = container.CommitLoad(gen, view.Wrap(rendered.Markup), view.ContentLoaded, rendered.Scripts)
	}

	outcome := OutcomeLoaded
	switch {
	case !committed:
		outcome = OutcomeStale
		l.logger.Debug("古い読み込み結果を破棄しました",
			slog.String("locator", locator),
			slog.Uint64("generation", gen),
		)
	case err != nil:
		outcome = OutcomeFailed
	}
	l.recorder.RecordContentLoad(string(outcome))
	return outcome
}

func (l *Loader) fetchAndRender(ctx context.Context, locator string) (Rendered, error) {
	resp, err := l.fetcher.Fetch(ctx, locator)
	if err != nil {
		return Rendered{}, err
	}
	if !resp.OK() {
		return Rendered{}, &StatusError{Status: resp.Status}
	}
	return l.renderer.Render(locator, resp.Body)
}

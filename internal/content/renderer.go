package content

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/appshell/internal/view"
)

// Capability はページ断片に埋め込まれたスクリプト片の扱いを決める権限。
type Capability string

const (
	// CapabilityTrusted はスクリプト片を同じ属性と本文で再生成し、マークアップに残す。
	CapabilityTrusted Capability = "trusted"
	// CapabilitySandboxed はマークアップを無害化し、text/luaの片のみをサンドボックスで実行する。
	CapabilitySandboxed Capability = "sandboxed"
)

// ParseCapability は文字列からCapabilityを返す。
func ParseCapability(s string) (Capability, error) {
	switch Capability(strings.ToLower(strings.TrimSpace(s))) {
	case CapabilityTrusted:
		return CapabilityTrusted, nil
	case CapabilitySandboxed, "":
		return CapabilitySandboxed, nil
	}
	return "", fmt.Errorf("unknown content capability: %q", s)
}

// Sanitizer はHTMLを無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Rendered は描画結果。
type Rendered struct {
	Markup  string
	Scripts []view.Script
}

// Renderer はペイロードをコンテンツ領域に注入できるマークアップに変換する。
type Renderer struct {
	capability Capability
	sanitizer  Sanitizer
	lua        *LuaRunner
	logger     *slog.Logger
}

// NewRenderer はRendererを生成する。
// sandboxedの場合はsanitizerとluaが必要。
func NewRenderer(capability Capability, sanitizer Sanitizer, lua *LuaRunner, logger *slog.Logger) *Renderer {
	return &Renderer{
		capability: capability,
		sanitizer:  sanitizer,
		lua:        lua,
		logger:     logger,
	}
}

// Capability は設定された権限を返す。
func (r *Renderer) Capability() Capability {
	return r.capability
}

// Render はペイロードを描画する。Markdownロケーターの場合は先にHTMLへ変換する。
func (r *Renderer) Render(locator, payload string) (Rendered, error) {
	markup := payload
	if IsMarkdown(locator) {
		converted, err := Markdown(payload)
		if err != nil {
			return Rendered{}, err
		}
		markup = converted
	}

	if r.capability == CapabilityTrusted {
		return r.renderTrusted(markup)
	}
	return r.renderSandboxed(locator, markup)
}

func (r *Renderer) renderTrusted(markup string) (Rendered, error) {
	if !hasScript(markup) {
		return Rendered{Markup: markup}, nil
	}

	frag, err := parseFragment(markup)
	if err != nil {
		return Rendered{}, err
	}
	scripts := frag.rematerialize()
	return Rendered{Markup: frag.String(), Scripts: scripts}, nil
}

func (r *Renderer) renderSandboxed(locator, markup string) (Rendered, error) {
	if !hasScript(markup) {
		return Rendered{Markup: r.sanitizer.Sanitize(markup)}, nil
	}

	// 1. スクリプト片を取り出す
	frag, err := parseFragment(markup)
	if err != nil {
		return Rendered{}, err
	}
	scripts := frag.removeScripts()

	// 2. 残りのマークアップを無害化して再パースする
	frag, err = parseFragment(r.sanitizer.Sanitize(frag.String()))
	if err != nil {
		return Rendered{}, err
	}

	// 3. Luaの片のみ順に実行する。失敗した片は記録して次へ進む
	for i, s := range scripts {
		if !strings.EqualFold(s.Attrs["type"], LuaScriptType) {
			r.logger.Debug("サンドボックスで実行できないスクリプトを除外しました",
				slog.String("locator", locator),
				slog.Int("index", i),
				slog.String("type", s.Attrs["type"]),
			)
			continue
		}
		if err := r.lua.Run(frag, locator, s.Body); err != nil {
			r.logger.Warn("コンテンツスクリプトの実行に失敗しました",
				slog.String("locator", locator),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
		}
	}

	return Rendered{Markup: frag.String()}, nil
}

package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はページ断片のサニタイズ機能のインターフェース。
type ContentSanitizerService interface {
	// Sanitize はマークアップをサニタイズして安全なマークアップを返す。
	// script, iframe, styleタグおよびon*イベント属性は除去される。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はページ断片向けのポリシーでサニタイザーを生成する。
// UGCポリシーを基に、レイアウト用のclass/id属性とdata-*属性を許可する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.UGCPolicy()

	p.AllowAttrs("class", "id").Globally()
	p.AllowDataAttributes()
	p.AllowElements("section", "article", "header", "footer", "nav", "main", "span", "div")
	p.AllowAttrs("role", "aria-label").Globally()

	return &contentSanitizer{policy: p}
}

// Sanitize はマークアップをサニタイズする。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

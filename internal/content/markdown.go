package content

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// markdownRenderer はMarkdownペイロードをHTMLに変換する。
// 生のHTMLはそのまま出力し、スクリプトの扱いと無害化は後段のRendererに任せる。
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// IsMarkdown はロケーターがMarkdownペイロードを指すかを返す。
func IsMarkdown(locator string) bool {
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		locator = locator[:i]
	}
	switch strings.ToLower(path.Ext(locator)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Markdown はMarkdownをHTMLに変換する。
func Markdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

package view

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LoaderPanel は読み込み中表示のマークアップを返す。
func LoaderPanel() string {
	return render(element(atom.Div, attrs("class", "loader")))
}

// Wrap は読み込んだマークアップを遷移アニメーション用のコンテナで包む。
// マークアップはそのまま埋め込まれる。
func Wrap(markup string) string {
	return `<div class="fade-in">` + markup + `</div>`
}

// NotFoundPanel は未定義ルート用のパネルを返す。
func NotFoundPanel() string {
	return render(element(atom.Div, attrs("class", "fade-in"),
		element(atom.H2, nil, text("404 - Page Not Found")),
		element(atom.P, nil, text("The requested page could not be found.")),
	))
}

// ErrorPanel は読み込み失敗時のパネルを返す。ロケーターとエラー内容を表示する。
func ErrorPanel(locator string, cause error) string {
	msg := "Could not load " + locator + "."
	if cause != nil {
		msg += " " + cause.Error()
	}
	return render(element(atom.Div,
		attrs("class", "card fade-in error-panel", "role", "alert", "data-locator", locator),
		element(atom.H3, nil, text("Error Loading Content")),
		element(atom.P, nil, text(msg)),
	))
}

// ProfileWidget はプロフィールウィジェットのマークアップを返す。
// 値はすべてエスケープされる。
func ProfileWidget(p Profile) string {
	var b strings.Builder
	b.WriteString(render(element(atom.Img, attrs("src", p.AvatarURL, "alt", "User", "class", "avatar"))))
	b.WriteString(render(element(atom.Div, attrs("class", "user-info"),
		element(atom.Span, attrs("class", "user-name"), text(p.DisplayName)),
		element(atom.Span, attrs("class", "user-role", "id", "btn-logout"), text("Sign Out")),
	)))
	return b.String()
}

func element(a atom.Atom, attr []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attr}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// attrs はkey, value, key, value...の並びから属性を生成する。
func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func render(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hitoshi/appshell/internal/view"
)

// hasScript はマークアップにスクリプト要素が含まれる可能性があるかを返す。
// 含まれない場合はパースせず、ペイロードをそのまま扱う。
func hasScript(markup string) bool {
	return strings.Contains(strings.ToLower(markup), "<script")
}

// fragment はパース済みのページ断片。
type fragment struct {
	root *html.Node
}

// parseFragment はマークアップを<div>の子としてパースする。
func parseFragment(markup string) (*fragment, error) {
	root := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &fragment{root: root}, nil
}

// String は断片を再シリアライズする。
func (f *fragment) String() string {
	var b strings.Builder
	for c := f.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return b.String()
		}
	}
	return b.String()
}

// scripts は文書順にスクリプト要素を返す。
func (f *fragment) scripts() []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(f.root)
	return out
}

// findByID はid属性が一致する最初の要素を返す。
func (f *fragment) findByID(id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(f.root)
	return found
}

// setText はidの要素の子をすべてテキストで置き換える。
func (f *fragment) setText(id, text string) bool {
	n := f.findByID(id)
	if n == nil {
		return false
	}
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return true
}

// appendText は断片の末尾にテキストの段落を追加する。
func (f *fragment) appendText(text string) {
	p := &html.Node{Type: html.ElementNode, DataAtom: atom.P, Data: "p"}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	f.root.AppendChild(p)
}

// removeScripts はスクリプト要素を取り除き、取り除いた内容を文書順に返す。
func (f *fragment) removeScripts() []view.Script {
	nodes := f.scripts()
	out := make([]view.Script, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toScript(n))
		n.Parent.RemoveChild(n)
	}
	return out
}

// rematerialize は各スクリプト要素を同じ属性と本文を持つ新しい要素で置き換える。
// 置き換えた要素の内容を文書順に返す。
func (f *fragment) rematerialize() []view.Script {
	nodes := f.scripts()
	out := make([]view.Script, 0, len(nodes))
	for _, old := range nodes {
		s := toScript(old)
		fresh := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Script,
			Data:     "script",
			Attr:     append([]html.Attribute(nil), old.Attr...),
		}
		if s.Body != "" {
			fresh.AppendChild(&html.Node{Type: html.TextNode, Data: s.Body})
		}
		old.Parent.InsertBefore(fresh, old)
		old.Parent.RemoveChild(old)
		out = append(out, s)
	}
	return out
}

func toScript(n *html.Node) view.Script {
	s := view.Script{Attrs: make(map[string]string, len(n.Attr))}
	for _, a := range n.Attr {
		s.Attrs[a.Key] = a.Val
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	s.Body = b.String()
	return s
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

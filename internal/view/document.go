// Package view はヘッドレスなページのUIモデルを提供する。
//
// Documentはランディング/シェルの表示切替、ナビゲーション、ページタイトル、
// コンテンツ領域、プロフィール、テーマ、サイドバーの状態を保持する。
// ルーターやローダーはDocumentを直接操作せず、Instructionを介して更新する。
package view

import (
	"sync"

	"github.com/hitoshi/appshell/internal/model"
)

// ContentState はコンテンツ領域の状態。
type ContentState string

const (
	ContentEmpty    ContentState = "empty"
	ContentLoading  ContentState = "loading"
	ContentLoaded   ContentState = "loaded"
	ContentNotFound ContentState = "not_found"
	ContentError    ContentState = "error"
)

// NavEntry はナビゲーションメニューの1項目。
type NavEntry struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Icon   string `json:"icon"`
	Href   string `json:"href"`
	Active bool   `json:"active"`
}

// Profile はプロフィールウィジェットの表示内容。
type Profile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
}

// Script はコンテンツに埋め込まれ、再生成されたスクリプト片。
type Script struct {
	Attrs map[string]string `json:"attrs"`
	Body  string            `json:"body"`
}

// Options はDocumentの動作設定。
type Options struct {
	// DiscardStaleLoads がtrueの場合、後から開始された読み込みがある時点で
	// 古い読み込みの結果を破棄する。falseの場合は最後に完了した結果が残る。
	DiscardStaleLoads bool
}

// Snapshot はDocumentのある時点の状態のコピー。
type Snapshot struct {
	LandingVisible bool         `json:"landing_visible"`
	ShellVisible   bool         `json:"shell_visible"`
	Title          string       `json:"title"`
	Nav            []NavEntry   `json:"nav"`
	Content        string       `json:"content"`
	ContentState   ContentState `json:"content_state"`
	Scripts        []Script     `json:"scripts,omitempty"`
	Profile        *Profile     `json:"profile,omitempty"`
	ProfileHTML    string       `json:"profile_html,omitempty"`
	Theme          model.Theme  `json:"theme"`
	ThemeIcon      string       `json:"theme_icon"`
	SidebarOpen    bool         `json:"sidebar_open"`
	OverlayVisible bool         `json:"overlay_visible"`
}

// Document は1ページ分のUI状態。全メソッドはgoroutineセーフ。
type Document struct {
	mu   sync.Mutex
	opts Options

	loggedIn bool
	title    string
	nav      []NavEntry
	profile  *Profile

	content      string
	contentState ContentState
	scripts      []Script
	generation   uint64

	theme       model.Theme
	sidebarOpen bool
}

// NewDocument はログアウト状態のDocumentを生成する。
func NewDocument(opts Options) *Document {
	return &Document{
		opts:         opts,
		contentState: ContentEmpty,
		theme:        model.ThemeLight,
	}
}

// SetLoggedIn はランディングとシェルの表示を切り替える。
// 表示状態はセッションの有無のみから決まり、個別に変更する手段は提供しない。
func (d *Document) SetLoggedIn(loggedIn bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loggedIn = loggedIn
}

// ShellVisible はアプリケーションシェルが表示されているかを返す。
func (d *Document) ShellVisible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loggedIn
}

// SetProfile はプロフィールウィジェットを設定する。nilで消去する。
func (d *Document) SetProfile(p *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == nil {
		d.profile = nil
		return
	}
	cp := *p
	d.profile = &cp
}

// SetNav はルート定義からナビゲーションメニューを再構築する。
// 再構築後はすべての項目が非アクティブになる。
func (d *Document) SetNav(routes []model.RouteDescriptor) {
	entries := make([]NavEntry, len(routes))
	for i, r := range routes {
		entries[i] = NavEntry{ID: r.ID, Label: r.Label, Icon: r.Icon, Href: r.Href()}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nav = entries
}

// SetActiveNav はIDが一致する項目のみをアクティブにし、他はすべて非アクティブにする。
func (d *Document) SetActiveNav(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.nav {
		d.nav[i].Active = d.nav[i].ID == id
	}
}

// ActiveNav はアクティブな項目のIDを返す。なければ空文字列。
func (d *Document) ActiveNav() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.nav {
		if e.Active {
			return e.ID
		}
	}
	return ""
}

// SetTitle はページタイトルを設定する。
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// Title はページタイトルを返す。
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

// BeginLoad はコンテンツ領域を読み込み中表示に置き換え、新しい世代番号を返す。
func (d *Document) BeginLoad(placeholder string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.content = placeholder
	d.contentState = ContentLoading
	d.scripts = nil
	return d.generation
}

// CommitLoad は読み込み結果をコンテンツ領域に反映する。
// DiscardStaleLoadsが有効で、genより新しい書き込みが既にある場合は反映せずfalseを返す。
func (d *Document) CommitLoad(gen uint64, content string, state ContentState, scripts []Script) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.DiscardStaleLoads && gen != d.generation {
		return false
	}
	d.content = content
	d.contentState = state
	d.scripts = scripts
	return true
}

// SetContent は読み込みを伴わずにコンテンツ領域を置き換える。
// 進行中の読み込みは古い世代として扱われる。
func (d *Document) SetContent(content string, state ContentState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.content = content
	d.contentState = state
	d.scripts = nil
}

// Content はコンテンツ領域の内容と状態を返す。
func (d *Document) Content() (string, ContentState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content, d.contentState
}

// SetTheme はテーマを適用する。アイコンもテーマに合わせて切り替わる。
func (d *Document) SetTheme(theme model.Theme) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.theme = theme
}

// Theme は適用中のテーマを返す。
func (d *Document) Theme() model.Theme {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.theme
}

// SetSidebarOpen はサイドバーとオーバーレイの表示を切り替える。
func (d *Document) SetSidebarOpen(open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sidebarOpen = open
}

// SidebarOpen はサイドバーが開いているかを返す。
func (d *Document) SidebarOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sidebarOpen
}

// Snapshot は現在の状態のコピーを返す。
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		LandingVisible: !d.loggedIn,
		ShellVisible:   d.loggedIn,
		Title:          d.title,
		Nav:            append([]NavEntry(nil), d.nav...),
		Content:        d.content,
		ContentState:   d.contentState,
		Scripts:        append([]Script(nil), d.scripts...),
		Theme:          d.theme,
		ThemeIcon:      d.theme.Icon(),
		SidebarOpen:    d.sidebarOpen,
		OverlayVisible: d.sidebarOpen,
	}
	if d.profile != nil {
		p := *d.profile
		s.Profile = &p
		s.ProfileHTML = ProfileWidget(p)
	}
	return s
}

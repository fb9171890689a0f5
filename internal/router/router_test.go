package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hitoshi/appshell/internal/content"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/security"
	"github.com/hitoshi/appshell/internal/view"
)

var testTable = route.MustNewTable([]model.RouteDescriptor{
	{ID: "dashboard", Label: "Dashboard", Icon: "dashboard", ContentLocator: "views/dashboard.html"},
	{ID: "projects", Label: "Projects", Icon: "folder", ContentLocator: "views/projects.html"},
	{ID: "team", Label: "Team", Icon: "group", ContentLocator: "views/team.html"},
})

var testViews = fstest.MapFS{
	"views/dashboard.html": &fstest.MapFile{Data: []byte("<h1>Dashboard</h1>")},
	"views/projects.html":  &fstest.MapFile{Data: []byte("<h1>Projects</h1>")},
	"views/team.html":      &fstest.MapFile{Data: []byte("<h1>Team</h1>")},
}

// fetcherFunc は関数をcontent.Fetcherとして扱う。
type fetcherFunc func(ctx context.Context, locator string) (content.Response, error)

func (f fetcherFunc) Fetch(ctx context.Context, locator string) (content.Response, error) {
	return f(ctx, locator)
}

// mockLoader はContentLoaderのテスト用モック。
type mockLoader struct {
	loaded []string
}

func (m *mockLoader) Load(ctx context.Context, c content.Container, locator string) content.Outcome {
	m.loaded = append(m.loaded, locator)
	return content.OutcomeLoaded
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newContentLoader(f content.Fetcher) *content.Loader {
	logger := testLogger()
	renderer := content.NewRenderer(content.CapabilitySandboxed, security.NewContentSanitizer(), content.NewLuaRunner(logger), logger)
	return content.NewLoader(f, renderer, nil, logger)
}

// newTestPage はログイン済みのナビゲーションを持つDocumentとRouterを組み立てる。
func newTestPage(fragment string, loader ContentLoader) (*Router, *view.Location, *view.Document) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})
	doc.SetLoggedIn(true)
	doc.SetNav(testTable.Routes())
	loc := view.NewLocation(fragment)
	r := New(testTable, loc, doc, loader, "dashboard", nil, testLogger())
	loc.OnChange(r.HandleRouteChange)
	return r, loc, doc
}

func activeEntries(doc *view.Document) []string {
	var ids []string
	for _, e := range doc.Snapshot().Nav {
		if e.Active {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func TestTransition_Resolved(t *testing.T) {
	next, ins := Transition(State{}, testTable, "#projects", "dashboard")

	if next.CurrentRouteID != "projects" {
		t.Errorf("CurrentRouteID = %q, want projects", next.CurrentRouteID)
	}
	want := []view.Instruction{
		view.SetActiveNavInstruction{ID: "projects"},
		view.SetTitleInstruction{Title: "Projects"},
		view.LoadContentInstruction{Locator: "views/projects.html"},
	}
	if len(ins) != len(want) {
		t.Fatalf("len(instructions) = %d, want %d", len(ins), len(want))
	}
	for i := range want {
		if ins[i] != want[i] {
			t.Errorf("instructions[%d] = %#v, want %#v", i, ins[i], want[i])
		}
	}
}

func TestTransition_EmptyFragmentEqualsDefault(t *testing.T) {
	fromEmpty, insEmpty := Transition(State{}, testTable, "", "dashboard")
	fromExplicit, insExplicit := Transition(State{}, testTable, "dashboard", "dashboard")

	if fromEmpty != fromExplicit {
		t.Errorf("state from empty = %+v, from explicit = %+v", fromEmpty, fromExplicit)
	}
	if len(insEmpty) != len(insExplicit) {
		t.Fatalf("instructions differ: %v vs %v", insEmpty, insExplicit)
	}
	for i := range insEmpty {
		if insEmpty[i] != insExplicit[i] {
			t.Errorf("instructions[%d]: %#v vs %#v", i, insEmpty[i], insExplicit[i])
		}
	}
}

func TestTransition_NotFoundKeepsState(t *testing.T) {
	prev := State{CurrentRouteID: "team"}
	next, ins := Transition(prev, testTable, "unknown-xyz", "dashboard")

	if next != prev {
		t.Errorf("state = %+v, want unchanged %+v", next, prev)
	}
	if len(ins) != 1 {
		t.Fatalf("len(instructions) = %d, want 1", len(ins))
	}
	panel, ok := ins[0].(view.ShowPanelInstruction)
	if !ok || panel.State != view.ContentNotFound {
		t.Errorf("instruction = %#v, want not-found panel", ins[0])
	}
}

func TestHandleRouteChange_LoadsProjects(t *testing.T) {
	r, _, doc := newTestPage("projects", newContentLoader(content.NewFSFetcher(testViews)))

	r.HandleRouteChange(context.Background())

	body, state := doc.Content()
	if body != `<div class="fade-in"><h1>Projects</h1></div>` {
		t.Errorf("content = %q", body)
	}
	if state != view.ContentLoaded {
		t.Errorf("state = %q, want loaded", state)
	}
	if doc.Title() != "Projects" {
		t.Errorf("title = %q, want Projects", doc.Title())
	}
	if id, ok := r.Current(); !ok || id != "projects" {
		t.Errorf("Current() = %q, %v", id, ok)
	}
}

func TestHandleRouteChange_ExactlyOneActiveAfterLoad(t *testing.T) {
	_, loc, doc := newTestPage("", newContentLoader(content.NewFSFetcher(testViews)))

	for _, id := range []string{"dashboard", "projects", "team", "projects"} {
		loc.Set(context.Background(), id)
		got := activeEntries(doc)
		if len(got) != 1 || got[0] != id {
			t.Errorf("after navigating to %q active = %v", id, got)
		}
	}
}

func TestHandleRouteChange_EmptyFragmentUsesDefault(t *testing.T) {
	loader := &mockLoader{}
	r, _, doc := newTestPage("", loader)

	r.HandleRouteChange(context.Background())

	if len(loader.loaded) != 1 || loader.loaded[0] != "views/dashboard.html" {
		t.Errorf("loaded = %v, want [views/dashboard.html]", loader.loaded)
	}
	if doc.ActiveNav() != "dashboard" || doc.Title() != "Dashboard" {
		t.Errorf("active=%q title=%q", doc.ActiveNav(), doc.Title())
	}
}

func TestHandleRouteChange_UnknownRouteKeepsHighlight(t *testing.T) {
	loader := &mockLoader{}
	r, loc, doc := newTestPage("team", loader)
	r.HandleRouteChange(context.Background())

	loc.Set(context.Background(), "unknown-xyz")

	body, state := doc.Content()
	if state != view.ContentNotFound || !strings.Contains(body, "404 - Page Not Found") {
		t.Errorf("content = %q state = %q, want not-found panel", body, state)
	}
	if got := activeEntries(doc); len(got) != 1 || got[0] != "team" {
		t.Errorf("active = %v, want [team]", got)
	}
	if id, _ := r.Current(); id != "team" {
		t.Errorf("Current() = %q, want team", id)
	}
	if doc.Title() != "Team" {
		t.Errorf("title = %q, want Team", doc.Title())
	}
	if len(loader.loaded) != 1 {
		t.Errorf("loaded = %v, unknown route must not fetch", loader.loaded)
	}
}

func TestHandleRouteChange_NetworkErrorIsContained(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, locator string) (content.Response, error) {
		return content.Response{}, errors.New("connection refused")
	})
	r, _, doc := newTestPage("projects", newContentLoader(f))

	r.HandleRouteChange(context.Background())

	body, state := doc.Content()
	if state != view.ContentError {
		t.Errorf("state = %q, want error", state)
	}
	if !strings.Contains(body, "views/projects.html") {
		t.Errorf("error panel should name the locator: %q", body)
	}
	if doc.ActiveNav() != "projects" {
		t.Errorf("active = %q, want projects", doc.ActiveNav())
	}
}

func TestHandleRouteChange_ServerErrorStatus(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, locator string) (content.Response, error) {
		return content.Response{Status: http.StatusInternalServerError}, nil
	})
	r, _, doc := newTestPage("team", newContentLoader(f))

	r.HandleRouteChange(context.Background())

	if body, state := doc.Content(); state != view.ContentError || !strings.Contains(body, "HTTP 500") {
		t.Errorf("content = %q state = %q", body, state)
	}
}

package content

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/hitoshi/appshell/internal/view"
)

// mockFetcher はFetcherのテスト用モック。
type mockFetcher struct {
	fetchFn func(ctx context.Context, locator string) (Response, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, locator string) (Response, error) {
	return m.fetchFn(ctx, locator)
}

// mockRecorder は記録された結果を保持する。
type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) RecordRouteChange(string)        {}
func (m *mockRecorder) RecordLoadLatency(time.Duration) {}
func (m *mockRecorder) RecordSignIn(string)             {}
func (m *mockRecorder) RecordSignOut()                  {}
func (m *mockRecorder) RecordThemeToggle()              {}
func (m *mockRecorder) RecordContentLoad(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func newTestLoader(f Fetcher, rec *mockRecorder) *Loader {
	if rec == nil {
		rec = &mockRecorder{}
	}
	return NewLoader(f, newSandboxedRenderer(), rec, testLogger())
}

func TestLoad_InjectsWrappedPayload(t *testing.T) {
	fsys := fstest.MapFS{
		"views/projects.html": &fstest.MapFile{Data: []byte("<h1>Projects</h1>")},
	}
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})
	rec := &mockRecorder{}

	got := newTestLoader(NewFSFetcher(fsys), rec).Load(context.Background(), doc, "views/projects.html")

	if got != OutcomeLoaded {
		t.Errorf("outcome = %q, want %q", got, OutcomeLoaded)
	}
	content, state := doc.Content()
	if content != `<div class="fade-in"><h1>Projects</h1></div>` {
		t.Errorf("content = %q", content)
	}
	if state != view.ContentLoaded {
		t.Errorf("state = %q, want %q", state, view.ContentLoaded)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "success" {
		t.Errorf("recorded outcomes = %v, want [success]", rec.outcomes)
	}
}

func TestLoad_ShowsPlaceholderWhileFetching(t *testing.T) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})
	doc.SetContent("<p>old</p>", view.ContentLoaded)

	var during string
	var duringState view.ContentState
	f := &mockFetcher{fetchFn: func(ctx context.Context, locator string) (Response, error) {
		during, duringState = doc.Content()
		return Response{Status: http.StatusOK, Body: "<p>new</p>"}, nil
	}}

	newTestLoader(f, nil).Load(context.Background(), doc, "views/a.html")

	if during != view.LoaderPanel() || duringState != view.ContentLoading {
		t.Errorf("during fetch content = %q state = %q, want loader panel", during, duringState)
	}
	if content, _ := doc.Content(); strings.Contains(content, "old") {
		t.Errorf("prior content should be replaced: %q", content)
	}
}

func TestLoad_TransportErrorRendersErrorPanel(t *testing.T) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})
	rec := &mockRecorder{}
	f := &mockFetcher{fetchFn: func(ctx context.Context, locator string) (Response, error) {
		return Response{}, errors.New("network unreachable")
	}}

	got := newTestLoader(f, rec).Load(context.Background(), doc, "views/analytics.html")

	if got != OutcomeFailed {
		t.Errorf("outcome = %q, want %q", got, OutcomeFailed)
	}
	content, state := doc.Content()
	if state != view.ContentError {
		t.Errorf("state = %q, want %q", state, view.ContentError)
	}
	if !strings.Contains(content, "views/analytics.html") || !strings.Contains(content, "network unreachable") {
		t.Errorf("error panel should name locator and error: %q", content)
	}
	if !strings.Contains(content, "Error Loading Content") {
		t.Errorf("error panel should carry a title: %q", content)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "error" {
		t.Errorf("recorded outcomes = %v, want [error]", rec.outcomes)
	}
}

func TestLoad_NonSuccessStatusRendersErrorPanel(t *testing.T) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})

	got := newTestLoader(NewFSFetcher(fstest.MapFS{}), nil).Load(context.Background(), doc, "views/missing.html")

	if got != OutcomeFailed {
		t.Errorf("outcome = %q, want %q", got, OutcomeFailed)
	}
	content, _ := doc.Content()
	if !strings.Contains(content, "views/missing.html") || !strings.Contains(content, "HTTP 404") {
		t.Errorf("error panel = %q", content)
	}
}

func TestLoad_StaleResultIsDiscarded(t *testing.T) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: true})

	release := make(chan struct{})
	started := make(chan struct{})
	f := &mockFetcher{fetchFn: func(ctx context.Context, locator string) (Response, error) {
		if locator == "views/slow.html" {
			close(started)
			<-release
			return Response{Status: http.StatusOK, Body: "<p>slow</p>"}, nil
		}
		return Response{Status: http.StatusOK, Body: "<p>fast</p>"}, nil
	}}
	loader := newTestLoader(f, nil)

	slowDone := make(chan Outcome)
	go func() {
		slowDone <- loader.Load(context.Background(), doc, "views/slow.html")
	}()
	<-started

	if got := loader.Load(context.Background(), doc, "views/fast.html"); got != OutcomeLoaded {
		t.Fatalf("fast outcome = %q, want %q", got, OutcomeLoaded)
	}
	close(release)

	if got := <-slowDone; got != OutcomeStale {
		t.Errorf("slow outcome = %q, want %q", got, OutcomeStale)
	}
	if content, _ := doc.Content(); !strings.Contains(content, "fast") {
		t.Errorf("content = %q, want the newer load", content)
	}
}

func TestLoad_LastWriteWinsWhenStaleLoadsAreKept(t *testing.T) {
	doc := view.NewDocument(view.Options{DiscardStaleLoads: false})

	release := make(chan struct{})
	started := make(chan struct{})
	f := &mockFetcher{fetchFn: func(ctx context.Context, locator string) (Response, error) {
		if locator == "views/slow.html" {
			close(started)
			<-release
			return Response{Status: http.StatusOK, Body: "<p>slow</p>"}, nil
		}
		return Response{Status: http.StatusOK, Body: "<p>fast</p>"}, nil
	}}
	loader := newTestLoader(f, nil)

	slowDone := make(chan Outcome)
	go func() {
		slowDone <- loader.Load(context.Background(), doc, "views/slow.html")
	}()
	<-started
	loader.Load(context.Background(), doc, "views/fast.html")
	close(release)

	if got := <-slowDone; got != OutcomeLoaded {
		t.Errorf("slow outcome = %q, want %q", got, OutcomeLoaded)
	}
	if content, _ := doc.Content(); !strings.Contains(content, "slow") {
		t.Errorf("content = %q, want the last completed load", content)
	}
}

package sessionstore

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/repository"
)

type failingStore struct {
	err error
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) { return "", f.err }
func (f *failingStore) Set(ctx context.Context, key, value string) error     { return f.err }
func (f *failingStore) Delete(ctx context.Context, key string) error         { return f.err }

func TestLoadIdentity_AbsentReturnsNil(t *testing.T) {
	a := New(repository.NewMemoryKVRepo(), "client-1")

	got, err := a.LoadIdentity(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("LoadIdentity() = %+v, want nil", got)
	}
}

func TestSaveLoadClearIdentity(t *testing.T) {
	ctx := context.Background()
	a := New(repository.NewMemoryKVRepo(), "client-1")
	want := model.SessionIdentity{
		DisplayName: "Taro",
		Email:       "taro@example.com",
		AvatarURL:   "https://example.com/a.png",
	}

	if err := a.SaveIdentity(ctx, want); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}

	got, err := a.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("LoadIdentity failed: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("LoadIdentity() = %+v, want %+v", got, want)
	}

	if err := a.ClearIdentity(ctx); err != nil {
		t.Fatalf("ClearIdentity failed: %v", err)
	}
	got, err = a.LoadIdentity(ctx)
	if err != nil || got != nil {
		t.Errorf("after clear: LoadIdentity() = %+v, %v; want nil, nil", got, err)
	}
}

func TestIdentity_StoredAsJSONUnderNamespacedKey(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryKVRepo()
	a := New(store, "client-1")

	_ = a.SaveIdentity(ctx, model.SessionIdentity{DisplayName: "n", Email: "e", AvatarURL: "p"})

	raw, err := store.Get(ctx, "client-1:user_session")
	if err != nil {
		t.Fatalf("expected namespaced key, got error: %v", err)
	}
	want := `{"name":"n","email":"e","picture":"p"}`
	if raw != want {
		t.Errorf("stored value = %s, want %s", raw, want)
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryKVRepo()
	a := New(store, "client-a")
	b := New(store, "client-b")

	_ = a.SaveIdentity(ctx, model.SessionIdentity{DisplayName: "a"})

	got, err := b.LoadIdentity(ctx)
	if err != nil || got != nil {
		t.Errorf("client-b sees client-a session: %+v, %v", got, err)
	}
}

func TestLoadIdentity_CorruptRecordReturnsError(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryKVRepo()
	_ = store.Set(ctx, "c:user_session", "{not json")

	got, err := New(store, "c").LoadIdentity(ctx)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if got != nil {
		t.Errorf("LoadIdentity() = %+v, want nil", got)
	}
}

func TestTheme_DefaultsToLight(t *testing.T) {
	theme, err := New(repository.NewMemoryKVRepo(), "c").LoadTheme(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if theme != model.ThemeLight {
		t.Errorf("LoadTheme() = %q, want %q", theme, model.ThemeLight)
	}
}

func TestTheme_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	a := New(repository.NewMemoryKVRepo(), "c")

	if err := a.SaveTheme(ctx, model.ThemeDark); err != nil {
		t.Fatalf("SaveTheme failed: %v", err)
	}
	theme, err := a.LoadTheme(ctx)
	if err != nil {
		t.Fatalf("LoadTheme failed: %v", err)
	}
	if theme != model.ThemeDark {
		t.Errorf("LoadTheme() = %q, want %q", theme, model.ThemeDark)
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	a := New(&failingStore{err: storeErr}, "c")

	if _, err := a.LoadIdentity(ctx); !errors.Is(err, storeErr) {
		t.Errorf("LoadIdentity error = %v, want wrapping %v", err, storeErr)
	}
	if err := a.SaveTheme(ctx, model.ThemeDark); !errors.Is(err, storeErr) {
		t.Errorf("SaveTheme error = %v, want wrapping %v", err, storeErr)
	}
	if err := a.ClearIdentity(ctx); !errors.Is(err, storeErr) {
		t.Errorf("ClearIdentity error = %v, want wrapping %v", err, storeErr)
	}
}

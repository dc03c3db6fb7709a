package history

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func exerciseSurface(t *testing.T, surface Surface) {
	t.Helper()
	if value, ok, err := surface.Get(); err != nil || ok || value != "" {
		t.Fatalf("Get() on fresh surface = %q, %v, %v; want empty, false, nil", value, ok, err)
	}
	for _, want := range []string{`{"a":1}`, `{}`, `{"b":"ünïcode"}`} {
		if err := surface.Set(want); err != nil {
			t.Fatalf("Set(%q) failed: %v", want, err)
		}
		got, ok, err := surface.Get()
		if err != nil || !ok || got != want {
			t.Fatalf("Get() = %q, %v, %v; want %q, true, nil", got, ok, err, want)
		}
	}
}

func TestMemorySurface(t *testing.T) {
	exerciseSurface(t, NewMemorySurface())
}

func TestFileSurface(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/data/localchat/conversations.json"
	exerciseSurface(t, NewFileSurface(fs, path))

	entries, err := afero.ReadDir(fs, "/data/localchat")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "conversations.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only conversations.json", names)
	}
}

func TestFileSurfaceReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := NewFileSurface(base, "/c.json").Set(`{"old":true}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	surface := NewFileSurface(afero.NewReadOnlyFs(base), "/c.json")
	if err := surface.Set(`{"new":true}`); err == nil {
		t.Fatal("Set on read-only fs succeeded, want error")
	}
	if got, _, _ := surface.Get(); got != `{"old":true}` {
		t.Errorf("Get() = %q after failed write, want old value", got)
	}
}

func TestSQLiteSurface(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")
	surface, err := OpenSQLiteSurface(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteSurface failed: %v", err)
	}
	exerciseSurface(t, surface)
	if err := surface.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSQLiteSurface(dbPath)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer reopened.Close()
	if got, ok, err := reopened.Get(); err != nil || !ok || got != `{"b":"ünïcode"}` {
		t.Errorf("Get() after reopen = %q, %v, %v", got, ok, err)
	}
}

func TestStoreOverFileAndSQLiteSurfaces(t *testing.T) {
	sqliteSurface, err := OpenSQLiteSurface(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteSurface failed: %v", err)
	}
	defer sqliteSurface.Close()

	surfaces := map[string]Surface{
		"file":   NewFileSurface(afero.NewMemMapFs(), "/conversations.json"),
		"sqlite": sqliteSurface,
	}
	for name, surface := range surfaces {
		t.Run(name, func(t *testing.T) {
			store, _ := newTestStore(t, surface, WithCapacity(2))
			var ids []string
			for _, q := range []string{"one", "two", "three"} {
				id, err := store.Save("", []Message{userMessage(q), assistantMessage("a")}, "")
				if err != nil {
					t.Fatalf("Save failed: %v", err)
				}
				ids = append(ids, id)
			}
			if n := len(store.ListSummaries()); n != 2 {
				t.Errorf("store holds %d conversations, want 2", n)
			}
			if _, err := store.Load(ids[2]); err != nil {
				t.Errorf("Load(newest) failed: %v", err)
			}
		})
	}
}

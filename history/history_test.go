package history

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var baseTime = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingSurface fails reads or writes on demand.
type failingSurface struct {
	MemorySurface
	getErr error
	setErr error
	sets   int
}

func (f *failingSurface) Get() (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemorySurface.Get()
}

func (f *failingSurface) Set(value string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemorySurface.Set(value)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, surface Surface, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: baseTime}
	opts = append([]Option{WithClock(clock.Now), WithLogger(discardLogger())}, opts...)
	return NewStore(surface, opts...), clock
}

func userMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: baseTime}
}

func assistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: baseTime}
}

func TestStoreSave(t *testing.T) {
	t.Run("new conversation gets an id, title and timestamps", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemorySurface())
		messages := []Message{userMessage("Hi"), assistantMessage("Hello!")}

		id, err := store.Save("", messages, "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !strings.HasPrefix(id, fmt.Sprintf("conv_%d_", baseTime.UnixMilli())) {
			t.Errorf("Save returned id %q, want conv_<ms>_ prefix", id)
		}

		got, err := store.Load(id)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		want := &Conversation{ID: id, Title: "Hi", Messages: messages, CreatedAt: baseTime, LastUpdatedAt: baseTime}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("caller supplied id is used for a new record", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemorySurface())
		id, err := store.Save("conv_1_abc", []Message{userMessage("a"), assistantMessage("b")}, "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if id != "conv_1_abc" {
			t.Errorf("Save returned %q, want conv_1_abc", id)
		}
	})

	t.Run("update keeps created time and title", func(t *testing.T) {
		store, clock := newTestStore(t, NewMemorySurface())
		id, err := store.Save("", []Message{userMessage("first question"), assistantMessage("answer")}, "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		clock.Advance(time.Minute)
		updated := []Message{userMessage("different opener"), assistantMessage("answer"), userMessage("more"), assistantMessage("sure")}
		if _, err := store.Save(id, updated, ""); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := store.Load(id)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		want := &Conversation{
			ID:            id,
			Title:         "first question",
			Messages:      updated,
			CreatedAt:     baseTime,
			LastUpdatedAt: baseTime.Add(time.Minute),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit title is used on first save", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemorySurface())
		messages := []Message{
			userMessage("Hello there, how are you today please respond quickly"),
			assistantMessage("Fine, thanks."),
		}
		id, err := store.Save("", messages, "Custom")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := store.Load(id)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.Title != "Custom" {
			t.Errorf("Title = %q, want %q", got.Title, "Custom")
		}
	})

	t.Run("explicit title overrides stored title", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemorySurface())
		id, _ := store.Save("", []Message{userMessage("q"), assistantMessage("a")}, "")
		if _, err := store.Save(id, []Message{userMessage("q"), assistantMessage("a")}, "  Named  "); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, _ := store.Load(id)
		if got.Title != "Named" {
			t.Errorf("Title = %q, want %q", got.Title, "Named")
		}
	})

	t.Run("system messages are not persisted", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemorySurface())
		id, err := store.Save("", []Message{
			{Role: RoleSystem, Content: "Loaded conversation", Timestamp: baseTime},
			userMessage("q"),
			{Role: RoleSystem, Content: "notice", Timestamp: baseTime},
			assistantMessage("a"),
		}, "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, _ := store.Load(id)
		if diff := cmp.Diff([]Message{userMessage("q"), assistantMessage("a")}, got.Messages); diff != "" {
			t.Errorf("Messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty conversation is rejected without writing", func(t *testing.T) {
		surface := &failingSurface{}
		store, _ := newTestStore(t, surface)
		for _, messages := range [][]Message{nil, {{Role: RoleSystem, Content: "only a notice"}}} {
			if _, err := store.Save("", messages, ""); !errors.Is(err, ErrEmptyConversation) {
				t.Errorf("Save(%v) error = %v, want ErrEmptyConversation", messages, err)
			}
		}
		if surface.sets != 0 {
			t.Errorf("surface written %d times, want 0", surface.sets)
		}
	})

	t.Run("write failure leaves the surface unchanged", func(t *testing.T) {
		surface := &failingSurface{}
		store, _ := newTestStore(t, surface)
		id, err := store.Save("", []Message{userMessage("keep me"), assistantMessage("ok")}, "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		before, _, _ := surface.MemorySurface.Get()

		surface.setErr = errors.New("quota exceeded")
		if _, err := store.Save("", []Message{userMessage("lost"), assistantMessage("ok")}, ""); err == nil {
			t.Fatal("Save succeeded, want error")
		}
		if err := store.Rename(id, "renamed"); err == nil {
			t.Fatal("Rename succeeded, want error")
		}
		if err := store.Delete(id); err == nil {
			t.Fatal("Delete succeeded, want error")
		}

		after, _, _ := surface.MemorySurface.Get()
		if diff := cmp.Diff(before, after); diff != "" {
			t.Errorf("surface changed after failed writes (-before +after):\n%s", diff)
		}
	})
}

func TestStoreEviction(t *testing.T) {
	const capacity = 3
	store, clock := newTestStore(t, NewMemorySurface(), WithCapacity(capacity))

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Save("", []Message{userMessage(fmt.Sprintf("question %d", i)), assistantMessage("a")}, "")
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		ids = append(ids, id)
		clock.Advance(time.Second)

		if n := len(store.ListSummaries()); n > capacity {
			t.Fatalf("after save %d store holds %d conversations, want at most %d", i, n, capacity)
		}
	}

	var got []string
	for _, s := range store.ListSummaries() {
		got = append(got, s.ID)
	}
	want := []string{ids[4], ids[3], ids[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("surviving ids mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreEvictionKeepsRecordJustWritten(t *testing.T) {
	store, clock := newTestStore(t, NewMemorySurface(), WithCapacity(2))
	first, _ := store.Save("", []Message{userMessage("one"), assistantMessage("a")}, "")
	clock.Advance(time.Second)
	second, _ := store.Save("", []Message{userMessage("two"), assistantMessage("a")}, "")

	// Same timestamp as the newest record: ties must not evict the new one.
	third, err := store.Save("", []Message{userMessage("three"), assistantMessage("a")}, "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Load(third); err != nil {
		t.Errorf("record just written was evicted: %v", err)
	}
	if _, err := store.Load(second); err != nil {
		t.Errorf("Load(second) failed: %v", err)
	}
	if _, err := store.Load(first); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Load(first) error = %v, want ErrConversationNotFound", err)
	}
}

func TestStoreEvictionWithOlderClock(t *testing.T) {
	// A record written with a clock behind the stored ones is still kept.
	store, clock := newTestStore(t, NewMemorySurface(), WithCapacity(1))
	if _, err := store.Save("", []Message{userMessage("newer"), assistantMessage("a")}, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	clock.Advance(-time.Hour)
	id, err := store.Save("", []Message{userMessage("older clock"), assistantMessage("a")}, "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	list := store.ListSummaries()
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("ListSummaries() = %+v, want only %s", list, id)
	}
}

func TestStoreConcurrentSaves(t *testing.T) {
	store, _ := newTestStore(t, NewMemorySurface(), WithCapacity(50))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Save("", []Message{userMessage(fmt.Sprintf("q%d", i)), assistantMessage("a")}, ""); err != nil {
				t.Errorf("Save %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if n := len(store.ListSummaries()); n != 20 {
		t.Errorf("store holds %d conversations, want 20", n)
	}
}

func TestNewStoreDefaults(t *testing.T) {
	store := NewStore(NewMemorySurface(), WithCapacity(0))
	if store.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", store.Capacity(), DefaultCapacity)
	}
}

func TestInferTitle(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{"short user message", []Message{userMessage("Hi")}, "Hi"},
		{
			"long user message is truncated",
			[]Message{userMessage("Hello there, how are you today please respond quickly")},
			"Hello there, how are you today please respond quic...",
		},
		{"exactly fifty characters", []Message{userMessage(strings.Repeat("x", 50))}, strings.Repeat("x", 50)},
		{"multibyte characters count once", []Message{userMessage(strings.Repeat("é", 51))}, strings.Repeat("é", 50) + "..."},
		{"first user message wins", []Message{assistantMessage("greeting"), userMessage("mine"), userMessage("later")}, "mine"},
		{"no user message", []Message{assistantMessage("only me")}, DefaultTitle},
		{"no messages", nil, DefaultTitle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferTitle(tc.messages); got != tc.want {
				t.Errorf("InferTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		var ms int64
		var suffix string
		if _, err := fmt.Sscanf(strings.ReplaceAll(id, "_", " "), "conv %d %s", &ms, &suffix); err != nil {
			t.Fatalf("GenerateID() = %q does not parse: %v", id, err)
		}
		if len(suffix) != 9 {
			t.Errorf("GenerateID() suffix %q has length %d, want 9", suffix, len(suffix))
		}
		if seen[id] {
			t.Fatalf("GenerateID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

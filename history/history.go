// Package history keeps a bounded collection of conversations in a single
// durable value. Every operation reads the value, applies its change and
// writes it back in one Set; nothing is cached between calls.
package history

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the conversation collection persisted through a Surface.
type Store struct {
	mu       sync.Mutex
	surface  Surface
	capacity int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets how many conversations are kept. Values below one are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report unreadable or unwritable storage.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore returns a Store backed by surface.
func NewStore(surface Surface, opts ...Option) *Store {
	s := &Store{
		surface:  surface,
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity reports the maximum number of conversations kept.
func (s *Store) Capacity() int {
	return s.capacity
}

// read loads the collection. Unreadable storage reads as empty.
func (s *Store) read() *collection {
	blob, ok, err := s.surface.Get()
	if err != nil {
		s.logger.Warn("reading conversations failed, treating as empty", "error", err)
		return newCollection()
	}
	if !ok || strings.TrimSpace(blob) == "" {
		return newCollection()
	}
	c, err := decodeCollection(blob, s.logger)
	if err != nil {
		s.logger.Warn("stored conversations are unreadable, treating as empty", "error", err)
		return newCollection()
	}
	return c
}

func (s *Store) write(c *collection) error {
	blob, err := c.encode()
	if err != nil {
		return fmt.Errorf("history: encode conversations: %w", err)
	}
	if err := s.surface.Set(blob); err != nil {
		s.logger.Error("writing conversations failed", "error", err)
		return fmt.Errorf("history: write conversations: %w", err)
	}
	return nil
}

// Save stores messages under id and returns the id. An empty id, or one not
// yet stored, creates a new conversation; an empty id gets a fresh one. For
// an existing conversation the messages are replaced and the stored title
// is kept unless title is given. System messages are not stored.
func (s *Store) Save(id string, messages []Message, title string) (string, error) {
	kept := persistable(messages)
	if len(kept) == 0 {
		return "", ErrEmptyConversation
	}
	title = strings.TrimSpace(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read()
	now := s.now()
	if id == "" {
		id = newID(now)
		for c.records[id] != nil {
			id = newID(now)
		}
	}

	rec, exists := c.records[id]
	if !exists {
		rec = &Conversation{ID: id, CreatedAt: now, Title: title}
		if rec.Title == "" {
			rec.Title = InferTitle(kept)
		}
		c.put(rec)
	} else if title != "" {
		rec.Title = title
	}
	rec.Messages = kept
	rec.LastUpdatedAt = now

	if dropped := c.evict(id, s.capacity); len(dropped) > 0 {
		s.logger.Debug("evicted conversations", "ids", dropped)
	}
	if err := s.write(c); err != nil {
		return "", err
	}
	return id, nil
}

// evict keeps the capacity most recently updated records. The pinned
// record always survives; ties keep the record that appears first.
func (c *collection) evict(pinned string, capacity int) []string {
	if len(c.order) <= capacity {
		return nil
	}
	ranked := append([]string(nil), c.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if (a == pinned) != (b == pinned) {
			return a == pinned
		}
		return c.records[a].LastUpdatedAt.After(c.records[b].LastUpdatedAt)
	})
	dropped := ranked[capacity:]
	for _, id := range dropped {
		c.remove(id)
	}
	return dropped
}

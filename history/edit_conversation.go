package history

import (
	"fmt"
	"strings"
)

// Delete removes the conversation stored under id. Deleting an unknown id
// succeeds without writing.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read()
	if _, ok := c.records[id]; !ok {
		return nil
	}
	c.remove(id)
	return s.write(c)
}

// Rename replaces the title of a stored conversation and marks it updated.
func (s *Store) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read()
	rec, ok := c.records[id]
	if !ok {
		return fmt.Errorf("conversation with ID '%s': %w", id, ErrConversationNotFound)
	}
	rec.Title = title
	rec.LastUpdatedAt = s.now()
	return s.write(c)
}

package history

import "fmt"

// Load returns the conversation stored under id.
func (s *Store) Load(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.read().records[id]
	if !ok {
		return nil, fmt.Errorf("conversation with ID '%s': %w", id, ErrConversationNotFound)
	}
	return rec.clone(), nil
}

package history

// Latest returns the ID of the most recently updated conversation, or
// ErrConversationNotFound when nothing is stored.
func (s *Store) Latest() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.read().summaries()
	if len(list) == 0 {
		return "", ErrConversationNotFound
	}
	return list[0].ID, nil
}

package history

import "sort"

// ListSummaries returns every stored conversation, most recently updated first.
func (s *Store) ListSummaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().summaries()
}

func (c *collection) summaries() []Summary {
	list := make([]Summary, 0, len(c.order))
	for _, id := range c.order {
		list = append(list, c.records[id].summary())
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastUpdatedAt.After(list[j].LastUpdatedAt)
	})
	return list
}

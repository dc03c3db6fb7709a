package history

import "sync"

// Surface is durable storage for a single string value. Get reports ok=false
// when nothing has been stored yet.
type Surface interface {
	Get() (value string, ok bool, err error)
	Set(value string) error
}

// MemorySurface keeps the value in process memory.
type MemorySurface struct {
	mu    sync.Mutex
	value string
	ok    bool
}

// NewMemorySurface returns an empty MemorySurface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

func (m *MemorySurface) Get() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.ok, nil
}

func (m *MemorySurface) Set(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.ok = value, true
	return nil
}

package localstore

import (
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by MemoryKV writes while FailWrites is set.
var ErrQuotaExceeded = errors.New("quota exceeded")

// MemoryKV is an in-process KeyValue. FailWrites and FailReads simulate a
// full or unavailable device store.
type MemoryKV struct {
	mu         sync.Mutex
	items      map[string]string
	FailWrites bool
	FailReads  bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]string)}
}

func (m *MemoryKV) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return "", false, errors.New("storage disabled")
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryKV) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrQuotaExceeded
	}
	m.items[key] = value
	return nil
}

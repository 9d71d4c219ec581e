package objvfs

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
)

// MemStore is an in-memory ObjectStore for tests and local use.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ ObjectStore = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Get returns a copy of the stored object.
func (s *MemStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, apperrors.NewNotFound("object", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of data under key.
func (s *MemStore) Put(key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// List returns the objects under prefix in key order.
func (s *MemStore) List(prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Len returns the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

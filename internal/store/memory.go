package store

import "sync"

// MemStore is an in-memory Store, used by tests and as a default when no
// state directory is configured.
type MemStore struct {
	mu    sync.Mutex
	model *Model
	chats map[ChatKey]ChatRecord
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{chats: make(map[ChatKey]ChatRecord)}
}

// LoadModel implements Store.
func (s *MemStore) LoadModel() (Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return Model{}, ErrNotFound
	}
	return *s.model, nil
}

// SaveModel implements Store.
func (s *MemStore) SaveModel(m Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = &m
	return nil
}

// LoadChat implements Store.
func (s *MemStore) LoadChat(key ChatKey) (ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.chats[key]
	if !ok {
		return ChatRecord{}, ErrNotFound
	}
	return record, nil
}

// SaveChat implements Store.
func (s *MemStore) SaveChat(key ChatKey, record ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[key] = record
	return nil
}

// DeleteChat implements Store.
func (s *MemStore) DeleteChat(key ChatKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, key)
	return nil
}

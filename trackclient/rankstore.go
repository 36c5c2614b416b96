package trackclient

import (
	"encoding/json"
	"os"
	"sync"

	"junk-removal/tracking/models"
)

// RankStore is the device-local record of the last applied status per
// order. It protects against a reconnect snapshot that temporarily
// regresses apparent state.
type RankStore interface {
	Last(orderID string) (models.OrderStatus, bool)
	Set(orderID string, status models.OrderStatus) error
}

// MemoryRankStore keeps the record for the life of the process.
type MemoryRankStore struct {
	mu    sync.Mutex
	ranks map[string]models.OrderStatus
}

func NewMemoryRankStore() *MemoryRankStore {
	return &MemoryRankStore{ranks: make(map[string]models.OrderStatus)}
}

func (s *MemoryRankStore) Last(orderID string) (models.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ranks[orderID]
	return st, ok
}

func (s *MemoryRankStore) Set(orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranks[orderID] = status
	return nil
}

// FileRankStore persists the record as a small JSON file, surviving app
// restarts on the device.
type FileRankStore struct {
	mu   sync.Mutex
	path string
}

func NewFileRankStore(path string) *FileRankStore {
	return &FileRankStore{path: path}
}

func (s *FileRankStore) Last(orderID string) (models.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranks := s.load()
	st, ok := ranks[orderID]
	return st, ok
}

func (s *FileRankStore) Set(orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranks := s.load()
	ranks[orderID] = status

	data, err := json.Marshal(ranks)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileRankStore) load() map[string]models.OrderStatus {
	ranks := make(map[string]models.OrderStatus)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ranks
	}
	_ = json.Unmarshal(data, &ranks)
	return ranks
}

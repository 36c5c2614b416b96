package store

import (
	"context"
	"sync"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

// Memory is an in-process OrderStore used by tests and the track client.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]models.Order)}
}

func (s *Memory) Get(_ context.Context, orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, lifecycle.ErrUnknownOrder
	}
	return order, nil
}

func (s *Memory) Put(_ context.Context, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

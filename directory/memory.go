package directory

import (
	"context"
	"sync"

	"junk-removal/tracking/models"
)

// Memory is an in-process Directory for tests.
type Memory struct {
	mu   sync.Mutex
	subs map[string]models.Subscription
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string]models.Subscription)}
}

func (d *Memory) Register(_ context.Context, sub models.Subscription) (models.Subscription, error) {
	sub, err := prepare(sub)
	if err != nil {
		return models.Subscription{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[sub.DeviceID] = sub
	return sub, nil
}

func (d *Memory) Get(_ context.Context, deviceID string) (models.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.subs[deviceID]
	if !ok {
		return models.Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (d *Memory) Remove(_ context.Context, deviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, deviceID)
	return nil
}

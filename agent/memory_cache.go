package agent

import (
	"context"
	"sync"
)

// MemoryCache is an in-process KeyValueCache for tests.
type MemoryCache struct {
	mu   sync.Mutex
	gens map[string]map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{gens: make(map[string]map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, generation, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.gens[generation][key]
	return body, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, generation, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[generation] == nil {
		c.gens[generation] = make(map[string][]byte)
	}
	c.gens[generation][key] = append([]byte(nil), body...)
	return nil
}

func (c *MemoryCache) Generations(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gens := make([]string, 0, len(c.gens))
	for gen := range c.gens {
		gens = append(gens, gen)
	}
	return gens, nil
}

func (c *MemoryCache) DropGeneration(_ context.Context, generation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gens, generation)
	return nil
}

package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
)

// KeyValueCache is the generation-scoped response cache the agent owns.
// Implementations overwrite by key, so concurrent revalidation of the same
// URL is safe without locking.
type KeyValueCache interface {
	Get(ctx context.Context, generation, key string) ([]byte, bool, error)
	Put(ctx context.Context, generation, key string, body []byte) error
	Generations(ctx context.Context) ([]string, error)
	DropGeneration(ctx context.Context, generation string) error
}

// StaticCache serves static app routes with stale-while-revalidate and
// keeps exactly one cache generation alive.
type StaticCache struct {
	cache   KeyValueCache
	client  *http.Client
	version string
	origin  string

	// Routes precached on install. Failures on individual entries must
	// not abort the install.
	manifest []string

	// Requests under these prefixes always hit the network and are never
	// cached: order/job/quote data must not go stale in the cache.
	dynamicPrefixes []string

	tasks sync.WaitGroup
}

// DefaultManifest lists the static app shell routes precached on install.
var DefaultManifest = []string{
	"/",
	"/dashboard",
	"/offline",
	"/static/css/app.css",
	"/static/js/app.js",
	"/static/img/logo.png",
}

// DefaultDynamicPrefixes lists the data endpoints the cache must bypass.
var DefaultDynamicPrefixes = []string{
	"/api/v1/orders",
	"/api/v1/jobs",
	"/api/v1/quotes",
}

func NewStaticCache(cache KeyValueCache, version, origin string) *StaticCache {
	return &StaticCache{
		cache:           cache,
		client:          &http.Client{},
		version:         version,
		origin:          origin,
		manifest:        DefaultManifest,
		dynamicPrefixes: DefaultDynamicPrefixes,
	}
}

// Install precaches the manifest into the current generation. A route that
// fails to fetch is logged and skipped; install itself only fails when the
// cache backend is unusable.
func (c *StaticCache) Install(ctx context.Context) error {
	for _, path := range c.manifest {
		body, err := c.fetchNetwork(ctx, path)
		if err != nil {
			log.Printf("precache %s: %v", path, err)
			continue
		}
		if err := c.cache.Put(ctx, c.version, path, body); err != nil {
			return fmt.Errorf("precache put %s: %w", path, err)
		}
	}
	return nil
}

// Activate garbage-collects every generation except the current one.
func (c *StaticCache) Activate(ctx context.Context) error {
	gens, err := c.cache.Generations(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	for _, gen := range gens {
		if gen == c.version {
			continue
		}
		if err := c.cache.DropGeneration(ctx, gen); err != nil {
			return fmt.Errorf("drop generation %s: %w", gen, err)
		}
	}
	return nil
}

// Fetch resolves one outgoing request. Non-GET requests and dynamic-data
// paths go straight to the network and are never cached. Static paths get
// stale-while-revalidate: a cached copy is returned immediately while a
// background refresh overwrites the entry for next time, and a network
// failure silently keeps serving the stale copy.
func (c *StaticCache) Fetch(ctx context.Context, method, path string) ([]byte, error) {
	if method != http.MethodGet || c.isDynamic(path) {
		return c.forward(ctx, method, path)
	}

	cached, ok, err := c.cache.Get(ctx, c.version, path)
	if err != nil {
		log.Printf("cache get %s: %v", path, err)
		ok = false
	}
	if ok {
		c.revalidate(path)
		return cached, nil
	}

	body, err := c.fetchNetwork(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, c.version, path, body); err != nil {
		log.Printf("cache put %s: %v", path, err)
	}
	return body, nil
}

// revalidate refreshes one entry in the background. The task is tracked so
// Wait can hold the agent's host open until it finishes.
func (c *StaticCache) revalidate(path string) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ctx := context.Background()
		body, err := c.fetchNetwork(ctx, path)
		if err != nil {
			// Stale copy keeps serving; no user-visible error.
			return
		}
		if err := c.cache.Put(ctx, c.version, path, body); err != nil {
			log.Printf("revalidate put %s: %v", path, err)
		}
	}()
}

// Wait blocks until all in-flight revalidations complete.
func (c *StaticCache) Wait() {
	c.tasks.Wait()
}

func (c *StaticCache) isDynamic(path string) bool {
	for _, prefix := range c.dynamicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (c *StaticCache) fetchNetwork(ctx context.Context, path string) ([]byte, error) {
	return c.forward(ctx, http.MethodGet, path)
}

// forward hits the network with the caller's method untouched.
func (c *StaticCache) forward(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.origin+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

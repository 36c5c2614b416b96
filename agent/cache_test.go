package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, handler http.Handler) (*StaticCache, *MemoryCache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	kv := NewMemoryCache()
	c := NewStaticCache(kv, "static-v2", srv.URL)
	return c, kv, srv
}

func TestFetch_DynamicPathBypassesCache(t *testing.T) {
	var hits int64
	c, kv, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte("live status"))
	}))
	ctx := context.Background()

	// A stale entry for the dynamic path must never be served.
	require.NoError(t, kv.Put(ctx, "static-v2", "/api/v1/orders/7", []byte("stale status")))

	body, err := c.Fetch(ctx, http.MethodGet, "/api/v1/orders/7")
	require.NoError(t, err)
	require.Equal(t, "live status", string(body))
	require.EqualValues(t, 1, atomic.LoadInt64(&hits))

	// Dynamic responses are never written back to the cache.
	cached, _, err := kv.Get(ctx, "static-v2", "/api/v1/orders/7")
	require.NoError(t, err)
	require.Equal(t, "stale status", string(cached))
}

func TestFetch_ServesStaleWhenNetworkDown(t *testing.T) {
	c, kv, srv := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "static-v2", "/dashboard", []byte("stale shell")))

	srv.Close()

	body, err := c.Fetch(ctx, http.MethodGet, "/dashboard")
	require.NoError(t, err)
	require.Equal(t, "stale shell", string(body))

	// The failed revalidation leaves the stale copy in place.
	c.Wait()
	cached, ok, err := kv.Get(ctx, "static-v2", "/dashboard")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "stale shell", string(cached))
}

func TestFetch_RevalidatesCacheAfterSuccess(t *testing.T) {
	c, kv, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh shell"))
	}))
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "static-v2", "/dashboard", []byte("stale shell")))

	// Stale copy served immediately, fresh one stored for next time.
	body, err := c.Fetch(ctx, http.MethodGet, "/dashboard")
	require.NoError(t, err)
	require.Equal(t, "stale shell", string(body))

	c.Wait()
	body, err = c.Fetch(ctx, http.MethodGet, "/dashboard")
	require.NoError(t, err)
	require.Equal(t, "fresh shell", string(body))
}

func TestFetch_MissFillsCache(t *testing.T) {
	c, kv, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first load"))
	}))
	ctx := context.Background()

	body, err := c.Fetch(ctx, http.MethodGet, "/offline")
	require.NoError(t, err)
	require.Equal(t, "first load", string(body))

	cached, ok, err := kv.Get(ctx, "static-v2", "/offline")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first load", string(cached))
}

func TestFetch_NonGETNeverIntercepted(t *testing.T) {
	var method string
	c, kv, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Write([]byte("posted"))
	}))
	ctx := context.Background()

	_, err := c.Fetch(ctx, http.MethodPost, "/contact")
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)

	_, ok, err := kv.Get(ctx, "static-v2", "/contact")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstall_SkipsFailingManifestEntries(t *testing.T) {
	c, kv, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok " + r.URL.Path))
	}))
	c.manifest = []string{"/", "/broken", "/dashboard"}
	ctx := context.Background()

	require.NoError(t, c.Install(ctx))

	_, ok, _ := kv.Get(ctx, "static-v2", "/")
	require.True(t, ok)
	_, ok, _ = kv.Get(ctx, "static-v2", "/broken")
	require.False(t, ok)
	_, ok, _ = kv.Get(ctx, "static-v2", "/dashboard")
	require.True(t, ok)
}

func TestActivate_DropsStaleGenerations(t *testing.T) {
	c, kv, _ := newTestCache(t, http.NotFoundHandler())
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "static-v1", "/dashboard", []byte("old")))
	require.NoError(t, kv.Put(ctx, "static-v2", "/dashboard", []byte("current")))

	require.NoError(t, c.Activate(ctx))

	_, ok, _ := kv.Get(ctx, "static-v1", "/dashboard")
	require.False(t, ok)
	cached, ok, _ := kv.Get(ctx, "static-v2", "/dashboard")
	require.True(t, ok)
	require.Equal(t, "current", string(cached))
}

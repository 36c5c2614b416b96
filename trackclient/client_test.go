package trackclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

var upgrader = websocket.Upgrader{}

// newWSServer runs a handler per connection and returns the ws URL.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn, connNum int64)) string {
	t.Helper()
	var conns int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, atomic.AddInt64(&conns, 1))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func snapshotMsg(status models.OrderStatus) models.Message {
	return models.Message{
		Type:  models.MessageSnapshot,
		Order: &models.Order{ID: "order-1", Status: status, ServiceType: "junk_removal"},
	}
}

func eventMsg(status models.OrderStatus) models.Message {
	return models.Message{
		Type:  models.MessageStatus,
		Event: &models.StatusEvent{OrderID: "order-1", Status: status},
	}
}

func waitForStatus(t *testing.T, c *Client, want models.OrderStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		order, ok := c.Snapshot()
		return ok && order.Status == want
	}, 3*time.Second, 10*time.Millisecond, "waiting for status %s", want)
}

func TestClient_SnapshotFirstThenFoldedStream(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusPending))
		for _, st := range []models.OrderStatus{
			models.OrderStatusDispatching,
			models.OrderStatusAssigned,
			models.OrderStatusEnRoute,
			models.OrderStatusAssigned, // late duplicate
		} {
			_ = conn.WriteJSON(eventMsg(st))
		}
		// Hold the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(url, "order-1", "token", nil)
	c.Connect(context.Background())
	defer c.Close()

	waitForStatus(t, c, models.OrderStatusEnRoute)
	order, _ := c.Snapshot()
	require.Equal(t, "junk_removal", order.ServiceType)
}

func TestClient_ReconnectSnapshotCannotRegress(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn, connNum int64) {
		if connNum == 1 {
			_ = conn.WriteJSON(snapshotMsg(models.OrderStatusEnRoute))
			return // drop the connection
		}
		// The reconnect replays a stale snapshot.
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusAssigned))
		_ = conn.WriteJSON(eventMsg(models.OrderStatusArrived))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(url, "order-1", "token", NewMemoryRankStore())
	c.Connect(context.Background())
	defer c.Close()

	waitForStatus(t, c, models.OrderStatusEnRoute)
	// After the reconnect the stale snapshot must not show through, and
	// newer events still apply.
	waitForStatus(t, c, models.OrderStatusArrived)
}

func TestClient_PersistedRankGuardsFreshProcess(t *testing.T) {
	ranks := NewMemoryRankStore()
	require.NoError(t, ranks.Set("order-1", models.OrderStatusInProgress))

	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusAssigned))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(url, "order-1", "token", ranks)
	c.Connect(context.Background())
	defer c.Close()

	// The stale snapshot is raised to the persisted floor.
	waitForStatus(t, c, models.OrderStatusInProgress)
}

func TestClient_UnknownOrderStopsSession(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(map[string]string{"error": "unknown order", "order_id": "order-1"})
	})

	c := New(url, "order-1", "token", nil)
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		return c.Err() != nil
	}, 3*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, c.Err(), lifecycle.ErrUnknownOrder)
}

func TestClient_LocationMonotonicGuard(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)
	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusEnRoute))
		samples := []models.LocationSample{
			{OrderID: "order-1", Latitude: 1, Longitude: 1, ObservedAt: base},
			{OrderID: "order-1", Latitude: 9, Longitude: 9, ObservedAt: base.Add(-time.Minute)}, // stale
			{OrderID: "order-1", Latitude: 2, Longitude: 2, ObservedAt: base.Add(time.Minute)},
		}
		for i := range samples {
			_ = conn.WriteJSON(models.Message{Type: models.MessageLocation, Sample: &samples[i]})
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(url, "order-1", "token", nil)
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		loc := c.Location()
		return loc != nil && loc.Latitude == 2
	}, 3*time.Second, 10*time.Millisecond)
	// The stale sample never showed as the latest position.
	require.Equal(t, base.Add(time.Minute).Unix(), c.Location().ObservedAt.Unix())
}

func TestClient_OnUpdateAndCancel(t *testing.T) {
	release := make(chan struct{})
	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusPending))
		<-release
		_ = conn.WriteJSON(eventMsg(models.OrderStatusDispatching))
		_ = conn.WriteJSON(eventMsg(models.OrderStatusAssigned))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	var updates int64
	c := New(url, "order-1", "token", nil)
	sub := c.OnUpdate(func(models.Order) {
		atomic.AddInt64(&updates, 1)
	})
	c.Connect(context.Background())
	defer c.Close()

	waitForStatus(t, c, models.OrderStatusPending)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&updates) == 1
	}, 3*time.Second, 10*time.Millisecond)
	first := atomic.LoadInt64(&updates)

	sub.Cancel()
	sub.Cancel() // idempotent
	close(release)

	waitForStatus(t, c, models.OrderStatusAssigned)
	require.Equal(t, first, atomic.LoadInt64(&updates))
}

func TestClient_IdenticalReconnectSnapshotIsSilent(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn, connNum int64) {
		if connNum == 1 {
			_ = conn.WriteJSON(snapshotMsg(models.OrderStatusAssigned))
			return // drop the connection
		}
		// The reconnect replays the same snapshot the client already holds.
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusAssigned))
		_ = conn.WriteJSON(eventMsg(models.OrderStatusEnRoute))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	var mu sync.Mutex
	var seen []models.OrderStatus
	c := New(url, "order-1", "token", NewMemoryRankStore())
	c.OnUpdate(func(order models.Order) {
		mu.Lock()
		seen = append(seen, order.Status)
		mu.Unlock()
	})
	c.Connect(context.Background())
	defer c.Close()

	waitForStatus(t, c, models.OrderStatusEnRoute)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == models.OrderStatusEnRoute
	}, 3*time.Second, 10*time.Millisecond)

	// Messages fold sequentially, so once en_route surfaced the replayed
	// snapshot has already been folded: it must not have fired a callback.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []models.OrderStatus{models.OrderStatusAssigned, models.OrderStatusEnRoute}, seen)
}

func TestClient_ConnectAndCloseIdempotent(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn, _ int64) {
		_ = conn.WriteJSON(snapshotMsg(models.OrderStatusPending))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(url, "order-1", "token", nil)
	ctx := context.Background()
	c.Connect(ctx)
	c.Connect(ctx)
	waitForStatus(t, c, models.OrderStatusPending)
	c.Close()
	c.Close()
}

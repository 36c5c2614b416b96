// Package trackclient is the live-channel client used by tracking
// sessions. Each client instance is explicitly constructed and owned by
// one session; there is no shared process-wide connection.
//
// The client never trusts transport ordering: every inbound message is
// folded through the lifecycle rank rules, so duplicates, reordering and
// reconnect snapshot replays cannot regress the displayed state.
package trackclient

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

// Subscription is a cancellable registration for order updates. Cancel is
// explicit; removal never depends on comparing callback identity.
type Subscription struct {
	id     uint64
	client *Client
}

// Cancel stops the callback. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	delete(s.client.subs, s.id)
}

type Client struct {
	baseURL string
	orderID string
	token   string
	ranks   RankStore
	dialer  *websocket.Dialer

	mu         sync.Mutex
	order      models.Order
	haveOrder  bool
	lastSample *models.LocationSample
	subs       map[uint64]func(models.Order)
	nextSub    uint64
	started    bool
	err        error
	cancel     context.CancelFunc
	done       chan struct{}
}

// New builds a client for one order. baseURL is the websocket endpoint,
// e.g. ws://host:8080/track.
func New(baseURL, orderID, token string, ranks RankStore) *Client {
	if ranks == nil {
		ranks = NewMemoryRankStore()
	}
	return &Client{
		baseURL: baseURL,
		orderID: orderID,
		token:   token,
		ranks:   ranks,
		dialer:  websocket.DefaultDialer,
		subs:    make(map[uint64]func(models.Order)),
	}
}

// Connect starts the session: dial, receive the snapshot, then keep
// folding the stream, re-dialing with backoff whenever the connection
// drops. Calling Connect on a running client is a no-op.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
}

// Close tears the session down. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Snapshot returns the current folded view of the order.
func (c *Client) Snapshot() (models.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order, c.haveOrder
}

// Location returns the last accepted driver position, if any.
func (c *Client) Location() *models.LocationSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSample
}

// Err reports why the session stopped for good, such as an unknown order.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnUpdate registers a callback invoked with the folded snapshot after
// every applied change.
func (c *Client) OnUpdate(fn func(models.Order)) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	c.subs[c.nextSub] = fn
	return &Subscription{id: c.nextSub, client: c}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := c.dialer.DialContext(ctx, c.sessionURL(), nil)
		if err != nil {
			log.Printf("track dial: %v. Retrying in %s...", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		fatal := c.readLoop(ctx, conn)
		conn.Close()
		if fatal || ctx.Err() != nil {
			return
		}
		// Dropped connection; re-subscribe and take the fresh snapshot.
	}
}

func (c *Client) sessionURL() string {
	return c.baseURL + "?order_id=" + url.QueryEscape(c.orderID) + "&token=" + url.QueryEscape(c.token)
}

// serverError is the synchronous error shape the channel can deliver
// before closing, e.g. for an unknown order.
type serverError struct {
	Error   string `json:"error"`
	OrderID string `json:"order_id"`
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) (fatal bool) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return false
		}

		var se serverError
		if json.Unmarshal(raw, &se) == nil && se.Error != "" {
			c.mu.Lock()
			c.err = lifecycle.ErrUnknownOrder
			c.mu.Unlock()
			return true
		}

		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("track decode: %v", err)
			continue
		}
		c.fold(msg)
	}
}

// fold applies one inbound message under the rank rules and fires update
// callbacks when the view changed.
func (c *Client) fold(msg models.Message) {
	c.mu.Lock()
	var (
		changed   bool
		callbacks []func(models.Order)
		view      models.Order
	)
	switch msg.Type {
	case models.MessageSnapshot:
		if msg.Order != nil {
			changed = c.applySnapshotLocked(*msg.Order)
		}
	case models.MessageStatus:
		if msg.Event != nil && c.haveOrder {
			c.order, changed = lifecycle.Apply(c.order, *msg.Event)
			if changed {
				_ = c.ranks.Set(c.orderID, c.order.Status)
			}
		}
	case models.MessageLocation:
		if msg.Sample != nil && lifecycle.AcceptSample(c.lastSample, *msg.Sample) {
			sample := *msg.Sample
			c.lastSample = &sample
			if c.haveOrder {
				c.order.DriverLocation = &sample
				changed = true
			}
		}
	}
	if changed {
		view = c.order
		for _, fn := range c.subs {
			callbacks = append(callbacks, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(view)
	}
}

// applySnapshotLocked accepts a full snapshot without letting it regress
// the view: the persisted rank floor and the in-memory state are replayed
// on top of it, so a stale snapshot after reconnect only refreshes
// attributes. Reports whether the folded view actually differs from the
// previous one, so a reconnect replaying an identical snapshot stays
// silent.
func (c *Client) applySnapshotLocked(snap models.Order) bool {
	if last, ok := c.ranks.Last(c.orderID); ok {
		snap, _ = lifecycle.Apply(snap, models.StatusEvent{OrderID: c.orderID, Status: last})
	}
	if c.haveOrder {
		snap, _ = lifecycle.Apply(snap, models.StatusEvent{OrderID: c.orderID, Status: c.order.Status})
		if snap.DriverLocation == nil {
			snap.DriverLocation = c.order.DriverLocation
		}
		if snap.EtaSeconds == nil {
			snap.EtaSeconds = c.order.EtaSeconds
		}
		if snap.DistanceMeters == nil {
			snap.DistanceMeters = c.order.DistanceMeters
		}
	}
	if snap.DriverLocation != nil && lifecycle.AcceptSample(c.lastSample, *snap.DriverLocation) {
		c.lastSample = snap.DriverLocation
	}

	changed := !c.haveOrder || !reflect.DeepEqual(c.order, snap)
	c.order = snap
	c.haveOrder = true
	_ = c.ranks.Set(c.orderID, snap.Status)
	return changed
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

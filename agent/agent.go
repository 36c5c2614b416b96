// Package agent is the offline delivery agent: a long-lived background
// worker installed once per device, independent of any order session. It
// owns the static response cache and is the guaranteed delivery path for
// push notifications when no live session exists.
package agent

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type Agent struct {
	cache   *StaticCache
	sink    NotificationSink
	windows WindowOpener

	deviceID string
	amqpURL  string
	queue    string
}

func New(cache *StaticCache, sink NotificationSink, windows WindowOpener, deviceID, amqpURL, queuePrefix string) *Agent {
	return &Agent{
		cache:    cache,
		sink:     sink,
		windows:  windows,
		deviceID: deviceID,
		amqpURL:  amqpURL,
		queue:    queuePrefix + deviceID,
	}
}

// Install precaches the static manifest, then garbage-collects stale cache
// generations.
func (a *Agent) Install(ctx context.Context) error {
	if err := a.cache.Install(ctx); err != nil {
		return err
	}
	return a.cache.Activate(ctx)
}

// Fetch is the agent's request path; see StaticCache.Fetch.
func (a *Agent) Fetch(ctx context.Context, method, path string) ([]byte, error) {
	return a.cache.Fetch(ctx, method, path)
}

// HandlePush renders a notification for one raw push payload. It never
// fails on malformed input; the generic default renders instead.
func (a *Agent) HandlePush(ctx context.Context, raw []byte) error {
	payload := ParsePayload(raw)
	n := Notification{
		ID:      uuid.NewString(),
		Title:   payload.Title,
		Body:    payload.Body,
		Payload: payload,
	}
	return a.sink.Notify(ctx, n)
}

// HandleActivate runs when the user taps a rendered notification: close
// it, compute the deep-link target, then reuse an open app window or open
// a new one.
func (a *Agent) HandleActivate(ctx context.Context, n Notification) error {
	if err := a.sink.Close(ctx, n.ID); err != nil {
		log.Printf("close notification %s: %v", n.ID, err)
	}
	path := RouteFor(n.Payload)
	if a.windows.FocusExisting(ctx, path) {
		return nil
	}
	return a.windows.Open(ctx, path)
}

// Run consumes the device's push queue until the context is cancelled,
// redialing the broker whenever the connection is lost. The agent keeps
// working with no live application window and no network; a dead broker
// only delays delivery.
func (a *Agent) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(a.amqpURL)
		if err != nil {
			log.Printf("push broker dial: %v. Retrying in 5 seconds...", err)
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}
		a.consume(ctx, conn)
		conn.Close()
	}
}

func (a *Agent) consume(ctx context.Context, conn *amqp.Connection) {
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("push channel: %v", err)
		return
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(a.queue, true, false, false, false, nil)
	if err != nil {
		log.Printf("declare push queue: %v", err)
		return
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		log.Printf("consume push queue: %v", err)
		return
	}

	closed := conn.NotifyClose(make(chan *amqp.Error))
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			log.Println("push broker connection lost. Reconnecting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := a.HandlePush(ctx, msg.Body); err != nil {
				log.Printf("render push: %v", err)
			}
		}
	}
}

// Close waits for in-flight background cache work before shutdown.
func (a *Agent) Close() {
	a.cache.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

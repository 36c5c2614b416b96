package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

// ConsumeTransitions drains the upstream authority's event queue. Every
// decoded StatusEvent is folded through the state machine; accepted
// transitions are fanned out to live subscribers and written to the audit
// trail. The tracking core never originates a transition itself.
func (s *Server) ConsumeTransitions() {
	ch, err := s.rabbitmq.Channel()
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(s.config.RabbitMQ.EventQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	// Transitions are acknowledged only after the fold lands in the store,
	// so a crash mid-fold redelivers instead of losing the event.
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	for msg := range msgs {
		if s.handleTransition(context.Background(), msg.Body) {
			if err := msg.Ack(false); err != nil {
				log.Printf("Failed to ack transition: %v", err)
			}
		} else {
			if err := msg.Nack(false, true); err != nil {
				log.Printf("Failed to requeue transition: %v", err)
			}
		}
	}
}

// handleTransition decodes and folds one delivery, reporting whether it
// should be acknowledged. Malformed bodies are acknowledged so a poison
// message cannot wedge the queue; apply failures are requeued.
func (s *Server) handleTransition(ctx context.Context, body []byte) bool {
	var event models.StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Failed to parse status event: %v", err)
		return true
	}
	if err := s.ApplyEvent(ctx, event); err != nil {
		log.Printf("Failed to apply event for order %s: %v", event.OrderID, err)
		return false
	}
	return true
}

// ApplyEvent folds one transition into the order's snapshot. An event for
// an order the store has never seen is reported as unknown and resolved by
// fetching the full snapshot from the upstream order API before retrying
// the fold; it is never silently dropped.
func (s *Server) ApplyEvent(ctx context.Context, event models.StatusEvent) error {
	order, err := s.orders.Get(ctx, event.OrderID)
	if errors.Is(err, lifecycle.ErrUnknownOrder) {
		eventsUnknownOrder.Inc()
		if logErr := s.logEvent(map[string]interface{}{
			"event":    "unknown_order",
			"order_id": event.OrderID,
		}); logErr != nil {
			log.Printf("Failed to log unknown order event: %v", logErr)
		}

		order, err = s.fetchOrderSnapshot(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("seed unknown order %s: %w", event.OrderID, err)
		}
	} else if err != nil {
		return err
	}

	updated, changed := lifecycle.Apply(order, event)
	if err := s.orders.Put(ctx, updated); err != nil {
		return err
	}
	if !changed {
		eventsIgnored.Inc()
		return nil
	}
	eventsAccepted.Inc()

	_, dropped := s.events.Publish(event.OrderID, models.Message{
		Type:  models.MessageStatus,
		Event: &event,
	})
	if dropped > 0 {
		subscribersDropped.Add(float64(dropped))
	}

	if err := s.logEvent(map[string]interface{}{
		"event":    "status_accepted",
		"order_id": event.OrderID,
		"status":   string(updated.Status),
	}); err != nil {
		log.Printf("Failed to log transition event: %v", err)
	}
	return nil
}

// fetchOrderSnapshot seeds the store from the upstream order-management
// service, the re-fetch path for unknown orders.
func (s *Server) fetchOrderSnapshot(ctx context.Context, orderID string) (models.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s", s.config.Upstream.OrderAPI, orderID), nil)
	if err != nil {
		return models.Order{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Order{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Order{}, fmt.Errorf("upstream order api: status %d", resp.StatusCode)
	}

	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.Put(ctx, order); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// ConsumeLocations drains the driver position queue into the best-effort
// relay. Losing a sample is acceptable; a stale one is discarded by the
// monotonic guard.
func (s *Server) ConsumeLocations() {
	ch, err := s.rabbitmq.Channel()
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(s.config.RabbitMQ.LocationQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	for msg := range msgs {
		var sample models.LocationSample
		if err := json.Unmarshal(msg.Body, &sample); err != nil {
			log.Printf("Failed to parse location sample: %v", err)
			continue
		}
		s.PublishLocation(sample)
	}
}

// PublishLocation forwards a sample to live subscribers if it is strictly
// newer than the last accepted one for its order.
func (s *Server) PublishLocation(sample models.LocationSample) {
	s.sampleMu.Lock()
	if !lifecycle.AcceptSample(s.lastSamples[sample.OrderID], sample) {
		s.sampleMu.Unlock()
		samplesDiscarded.Inc()
		return
	}
	kept := sample
	s.lastSamples[sample.OrderID] = &kept
	s.sampleMu.Unlock()

	s.locations.Publish(sample.OrderID, models.Message{
		Type:   models.MessageLocation,
		Sample: &sample,
	})
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

// Redis stores each snapshot as a JSON value at order:<id>.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func orderKey(orderID string) string {
	return "order:" + orderID
}

func (s *Redis) Get(ctx context.Context, orderID string) (models.Order, error) {
	data, err := s.rdb.Get(ctx, orderKey(orderID)).Result()
	if err == redis.Nil {
		return models.Order{}, lifecycle.ErrUnknownOrder
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}

	var order models.Order
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		return models.Order{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *Redis) Put(ctx context.Context, order models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", order.ID, err)
	}
	if err := s.rdb.Set(ctx, orderKey(order.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("put order %s: %w", order.ID, err)
	}
	return nil
}

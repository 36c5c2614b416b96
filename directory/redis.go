package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"junk-removal/tracking/models"
)

// Redis stores each device's subscription as JSON at push:device:<id>.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func deviceKey(deviceID string) string {
	return "push:device:" + deviceID
}

func (d *Redis) Register(ctx context.Context, sub models.Subscription) (models.Subscription, error) {
	sub, err := prepare(sub)
	if err != nil {
		return models.Subscription{}, err
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("encode subscription: %w", err)
	}
	// SET overwrites, which is exactly the replace-on-reregister rule.
	if err := d.rdb.Set(ctx, deviceKey(sub.DeviceID), data, 0).Err(); err != nil {
		return models.Subscription{}, fmt.Errorf("store subscription: %w", err)
	}
	return sub, nil
}

func (d *Redis) Get(ctx context.Context, deviceID string) (models.Subscription, error) {
	data, err := d.rdb.Get(ctx, deviceKey(deviceID)).Result()
	if err == redis.Nil {
		return models.Subscription{}, ErrNotFound
	}
	if err != nil {
		return models.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}

	var sub models.Subscription
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		return models.Subscription{}, fmt.Errorf("decode subscription: %w", err)
	}
	return sub, nil
}

func (d *Redis) Remove(ctx context.Context, deviceID string) error {
	if err := d.rdb.Del(ctx, deviceKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}

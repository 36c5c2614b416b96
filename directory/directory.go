// Package directory is the durable device-to-push-endpoint mapping used by
// the external push sender to target offline devices.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"junk-removal/tracking/models"
)

// ErrMissingCapability means the device never completed notification
// permission acquisition; a platform only issues a push endpoint after the
// user grants it. The directory does not prompt and does not retry.
var ErrMissingCapability = errors.New("notification permission not granted")

// ErrNotFound means the device has no active subscription.
var ErrNotFound = errors.New("subscription not found")

// Directory stores at most one active subscription per device; a new
// registration replaces any prior one.
type Directory interface {
	Register(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	Get(ctx context.Context, deviceID string) (models.Subscription, error)
	Remove(ctx context.Context, deviceID string) error
}

// prepare validates and stamps a registration. Shared by implementations.
func prepare(sub models.Subscription) (models.Subscription, error) {
	if sub.Endpoint == "" {
		return models.Subscription{}, ErrMissingCapability
	}
	if sub.DeviceID == "" {
		return models.Subscription{}, errors.New("device id is required")
	}
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	return sub, nil
}

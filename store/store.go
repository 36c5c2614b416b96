// Package store persists order snapshots. The tracking core only ever
// reads and overwrites whole snapshots; history lives in the audit log.
package store

import (
	"context"

	"junk-removal/tracking/models"
)

// OrderStore is the snapshot repository. Get returns
// lifecycle.ErrUnknownOrder for an id that was never stored.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (models.Order, error)
	Put(ctx context.Context, order models.Order) error
}

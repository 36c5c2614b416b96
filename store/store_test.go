package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

func TestMemory_PutOverwritesSnapshot(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.Order{ID: "order-1", Status: models.OrderStatusPending}))
	require.NoError(t, s.Put(ctx, models.Order{ID: "order-1", Status: models.OrderStatusAssigned}))

	order, err := s.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusAssigned, order.Status)
}

func TestMemory_UnknownOrder(t *testing.T) {
	s := NewMemory()

	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, lifecycle.ErrUnknownOrder)
}

package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt"

	"junk-removal/tracking/directory"
	"junk-removal/tracking/lifecycle"
	"junk-removal/tracking/models"
)

// @Summary Get order snapshot
// @Tags Orders
// @Produce json
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id} [get]
func (s *Server) GetOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	order, err := s.orders.Get(c.Context(), orderID)
	if errors.Is(err, lifecycle.ErrUnknownOrder) {
		return fiber.NewError(fiber.StatusNotFound, "unknown order")
	}
	if err != nil {
		return err
	}

	order.Status = order.Status.Display()
	return c.JSON(order)
}

type registerRequest struct {
	DeviceID string                  `json:"device_id"`
	Endpoint string                  `json:"endpoint"`
	Keys     models.SubscriptionKeys `json:"keys"`
	OrderID  string                  `json:"order_id,omitempty"`
}

// @Summary Register push subscription
// @Tags Push
// @Accept json
// @Produce json
// @Success 200 {object} models.Subscription
// @Router /api/v1/push/subscriptions [post]
func (s *Server) RegisterSubscription(c *fiber.Ctx) error {
	// The bearer credential is optional (guest tracking links register
	// order-scoped subscriptions without an account), but when present it
	// has to pass.
	if auth := c.Get("Authorization"); auth != "" {
		raw := strings.TrimPrefix(auth, "Bearer ")
		claims := jwt.MapClaims{}
		if _, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.JWT.SecretKey), nil
		}); err != nil {
			return fiber.ErrUnauthorized
		}
	}

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid subscription body")
	}

	sub, err := s.directory.Register(c.Context(), models.Subscription{
		DeviceID: req.DeviceID,
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
		OrderID:  req.OrderID,
	})
	if errors.Is(err, directory.ErrMissingCapability) {
		return fiber.NewError(fiber.StatusForbidden, "notification permission not granted")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(sub)
}

// @Summary Remove push subscription
// @Tags Push
// @Success 204
// @Router /api/v1/push/subscriptions/{deviceID} [delete]
func (s *Server) RemoveSubscription(c *fiber.Ctx) error {
	if err := s.directory.Remove(c.Context(), c.Params("deviceID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

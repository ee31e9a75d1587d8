package models

import (
	"strconv"

	"github.com/fieldops/fieldsync/internal/errors"
)

// OrderStatus tracks the sync lifecycle of a locally recorded visit.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusSyncing OrderStatus = "syncing"
	OrderStatusSynced  OrderStatus = "synced"
	OrderStatusError   OrderStatus = "error"
)

// validTransitions holds the allowed status moves. Error items may go back
// to pending when their retry backoff expires.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusSyncing},
	OrderStatusSyncing: {OrderStatusSynced, OrderStatusError},
	OrderStatusError:   {OrderStatusSyncing, OrderStatusPending},
}

// CanTransition reports whether a status move is allowed.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, t := range validTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// OrderItem is one restocked product line in a visit.
type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Location is the geolocation captured when the visit was completed.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VisitPayload is the domain write recorded when a courier completes a
// store visit. It is what eventually gets submitted to the remote API.
type VisitPayload struct {
	CourierID string      `json:"courierId"`
	StoreID   string      `json:"storeId"`
	Items     []OrderItem `json:"items"`
	Location  *Location   `json:"location,omitempty"`
}

// Validate rejects payloads missing the fields the remote API requires.
func (v *VisitPayload) Validate() error {
	if v.CourierID == "" {
		return errors.New(errors.ErrValidation, "visit is missing a courier id")
	}
	if v.StoreID == "" {
		return errors.New(errors.ErrValidation, "visit is missing a store id")
	}
	if len(v.Items) == 0 {
		return errors.New(errors.ErrValidation, "visit has no items")
	}
	for _, item := range v.Items {
		if item.ProductID == "" {
			return errors.New(errors.ErrValidation, "visit item is missing a product id")
		}
		if item.Quantity <= 0 {
			return errors.New(errors.ErrValidation, "visit item quantity must be positive")
		}
	}
	return nil
}

// PendingOrder is a locally committed visit that has not been acknowledged
// by the remote yet.
type PendingOrder struct {
	// LocalID is assigned from a durable auto-increment and never reused.
	LocalID int64 `json:"localId"`

	// RequestID is a client-generated idempotency key sent with every
	// submission attempt for this order.
	RequestID string `json:"requestId"`

	Visit VisitPayload `json:"visit"`

	Status OrderStatus `json:"status"`

	// Timestamp is the creation time in unix milliseconds. Submission
	// order equals creation order.
	Timestamp int64 `json:"timestamp"`

	// Attempts counts submission tries, not status writes.
	Attempts int `json:"attempts"`

	// NextRetryAt gates re-promotion of error items (unix seconds).
	NextRetryAt int64 `json:"nextRetryAt,omitempty"`

	LastError string `json:"lastError,omitempty"`
}

// Key returns the LDS primary key for this order.
func (o *PendingOrder) Key() string {
	return strconv.FormatInt(o.LocalID, 10)
}

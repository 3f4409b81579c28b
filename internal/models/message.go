package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys on the orders topic exchange
const (
	EventOrderPlaced    = "order.placed"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// OrderMessage is published to the orders topic after an order changes state
type OrderMessage struct {
	Event        string          `json:"event"`
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	OwnerID      string          `json:"owner_id"`
	RestaurantID string          `json:"restaurant_id"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	EntityType          string           `json:"entity_type"`
	EntityID            string           `json:"entity_id"`
	OrderNumber         string           `json:"order_number,omitempty"`
	OwnerID             string           `json:"owner_id,omitempty"`
	OldStatus           string           `json:"old_status"`
	NewStatus           string           `json:"new_status"`
	ChangedBy           string           `json:"changed_by"`
	Timestamp           time.Time        `json:"timestamp"`
	EstimatedCompletion *time.Time       `json:"estimated_completion,omitempty"`
	TotalAmount         *decimal.Decimal `json:"total_amount,omitempty"`
	DeliveryOtp         string           `json:"delivery_otp,omitempty"`
}

// NewOrderMessage builds the event published for an order
func NewOrderMessage(event string, o *Order) *OrderMessage {
	return &OrderMessage{
		Event:        event,
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		OwnerID:      o.OwnerID,
		RestaurantID: o.RestaurantID,
		Status:       o.Status,
		TotalAmount:  o.TotalAmount,
		Timestamp:    time.Now().UTC(),
	}
}

// CreateStatusUpdateMessage creates a StatusUpdateMessage for a status change
func CreateStatusUpdateMessage(entityType, entityID, oldStatus, newStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		EntityType: entityType,
		EntityID:   entityID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedBy:  changedBy,
		Timestamp:  time.Now().UTC(),
	}
}

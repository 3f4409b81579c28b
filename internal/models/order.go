package models

import (
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderPlaced         OrderStatus = "PLACED"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderPreparing      OrderStatus = "PREPARING"
	OrderReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderPlaced},
	OrderPlaced:         {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderPreparing, OrderCancelled},
	OrderPreparing:      {OrderReadyForPickup, OrderRefunded},
	OrderReadyForPickup: {OrderOutForDelivery, OrderRefunded},
	OrderOutForDelivery: {OrderDelivered, OrderRefunded},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPlaced, OrderConfirmed, OrderPreparing, OrderReadyForPickup,
		OrderOutForDelivery, OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

func (s OrderStatus) CanBeCancelled() bool {
	return s == OrderPlaced || s == OrderConfirmed
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderRefunded
}

// PaymentMethod is recorded on the order only; no settlement happens here.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard      PaymentMethod = "DEBIT_CARD"
	PaymentUPI            PaymentMethod = "UPI"
	PaymentWallet         PaymentMethod = "WALLET"
	PaymentNetBanking     PaymentMethod = "NET_BANKING"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentWallet, PaymentNetBanking:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// ItemType is the dietary classification copied from the catalog
type ItemType string

const (
	ItemVeg         ItemType = "VEG"
	ItemNonVeg      ItemType = "NON_VEG"
	ItemVegan       ItemType = "VEGAN"
	ItemJain        ItemType = "JAIN"
	ItemContainsEgg ItemType = "CONTAINS_EGG"
)

// Address is the delivery destination of an order
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// OrderItem is an immutable snapshot of a catalog item at order time
type OrderItem struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	MenuItemRef         string          `json:"menu_item_ref"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DiscountPercentage  decimal.Decimal `json:"discount_percentage"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	ItemName            string          `json:"item_name"`
	ItemDescription     string          `json:"item_description,omitempty"`
	ItemImageURL        string          `json:"item_image_url,omitempty"`
	ItemType            ItemType        `json:"item_type,omitempty"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID                    string          `json:"id"`
	OrderNumber           string          `json:"order_number"`
	OwnerID               string          `json:"owner_id"`
	RestaurantID          string          `json:"restaurant_id"`
	OrderDate             time.Time       `json:"order_date"`
	Status                OrderStatus     `json:"status"`
	PaymentMethod         *PaymentMethod  `json:"payment_method,omitempty"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	DeliveryAddress       Address         `json:"delivery_address"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time      `json:"actual_delivery_time,omitempty"`
	CouponCode            *string         `json:"coupon_code,omitempty"`
	RefundAmount          decimal.Decimal `json:"refund_amount"`
	CancellationReason    *string         `json:"cancellation_reason,omitempty"`
	Items                 []OrderItem     `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// OrderLineRequest is one requested line when building an order directly
type OrderLineRequest struct {
	MenuItemRef         string  `json:"menu_item_ref"`
	Quantity            int     `json:"quantity"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

// CreateOrderRequest represents the request to create a new order.
// When Items is empty and FromCart is set the order is built from the caller's cart.
type CreateOrderRequest struct {
	DeliveryAddress Address            `json:"delivery_address"`
	Items           []OrderLineRequest `json:"items"`
	FromCart        bool               `json:"from_cart"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	CouponCode      *string            `json:"coupon_code,omitempty"`
}

type CancelOrderRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
	Notes  *string     `json:"notes,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// StatusLogEntry is one accepted transition of an order or delivery
type StatusLogEntry struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  string    `json:"changed_by"`
	Notes      *string   `json:"notes,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

const (
	EntityOrder    = "order"
	EntityDelivery = "delivery"
)

// OrderTrackingResponse represents the response for order tracking
type OrderTrackingResponse struct {
	OrderNumber           string     `json:"order_number"`
	CurrentStatus         string     `json:"current_status"`
	UpdatedAt             time.Time  `json:"updated_at"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
	DeliveryStatus        *string    `json:"delivery_status,omitempty"`
}

// GenerateOrderNumber returns a new order number in format ORD-<ULID>.
// ulid.Make is monotonic within a process, so numbers never collide under concurrency.
func GenerateOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}

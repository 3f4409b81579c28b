package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryStatus represents the status of a delivery
type DeliveryStatus string

const (
	DeliveryPending         DeliveryStatus = "PENDING"
	DeliveryAssigned        DeliveryStatus = "ASSIGNED"
	DeliveryPartnerAccepted DeliveryStatus = "PARTNER_ACCEPTED"
	DeliveryPickedUp        DeliveryStatus = "PICKED_UP"
	DeliveryInTransit       DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered       DeliveryStatus = "DELIVERED"
	DeliveryCancelled       DeliveryStatus = "CANCELLED"
	DeliveryFailed          DeliveryStatus = "FAILED"
	DeliveryReturned        DeliveryStatus = "RETURNED"
)

// PENDING -> ASSIGNED is only reachable through partner assignment.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:         {DeliveryCancelled},
	DeliveryAssigned:        {DeliveryPartnerAccepted, DeliveryCancelled},
	DeliveryPartnerAccepted: {DeliveryPickedUp, DeliveryCancelled},
	DeliveryPickedUp:        {DeliveryInTransit, DeliveryFailed, DeliveryReturned},
	DeliveryInTransit:       {DeliveryDelivered, DeliveryFailed, DeliveryReturned},
	DeliveryFailed:          {DeliveryReturned},
}

var deliveryDisplay = map[DeliveryStatus]string{
	DeliveryPending:         "Finding delivery partner",
	DeliveryAssigned:        "Delivery partner assigned",
	DeliveryPartnerAccepted: "Partner on the way to restaurant",
	DeliveryPickedUp:        "Order picked up",
	DeliveryInTransit:       "On the way to you",
	DeliveryDelivered:       "Delivered",
	DeliveryCancelled:       "Delivery cancelled",
	DeliveryFailed:          "Delivery failed",
	DeliveryReturned:        "Order returned",
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryDisplay[s]
	return ok
}

func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	return slices.Contains(deliveryTransitions[s], next)
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled || s == DeliveryReturned
}

// CanBeTracked reports whether live location updates are accepted.
func (s DeliveryStatus) CanBeTracked() bool {
	return s == DeliveryPickedUp || s == DeliveryInTransit
}

func (s DeliveryStatus) IsInProgress() bool {
	switch s {
	case DeliveryAssigned, DeliveryPartnerAccepted, DeliveryPickedUp, DeliveryInTransit:
		return true
	}
	return false
}

// Display returns the customer-facing description of the status.
func (s DeliveryStatus) Display() string {
	if d, ok := deliveryDisplay[s]; ok {
		return d
	}
	return string(s)
}

// Delivery is the fulfilment record of exactly one order
type Delivery struct {
	ID                    string              `json:"id"`
	OrderID               string              `json:"order_id"`
	Status                DeliveryStatus      `json:"status"`
	DeliveryPartnerID     *string             `json:"delivery_partner_id,omitempty"`
	AssignedTime          *time.Time          `json:"assigned_time,omitempty"`
	PickupTime            *time.Time          `json:"pickup_time,omitempty"`
	DeliveryTime          *time.Time          `json:"delivery_time,omitempty"`
	EstimatedPickupTime   *time.Time          `json:"estimated_pickup_time,omitempty"`
	EstimatedDeliveryTime *time.Time          `json:"estimated_delivery_time,omitempty"`
	DistanceKm            decimal.NullDecimal `json:"distance_km"`
	DeliveryFee           decimal.NullDecimal `json:"delivery_fee"`
	PartnerEarnings       decimal.NullDecimal `json:"partner_earnings"`
	OtpHash               string              `json:"-"`
	IsOtpVerified         bool                `json:"is_otp_verified"`
	OtpFailedAttempts     int                 `json:"otp_failed_attempts"`
	CurrentLatitude       *float64            `json:"current_latitude,omitempty"`
	CurrentLongitude      *float64            `json:"current_longitude,omitempty"`
	LastLocationUpdate    *time.Time          `json:"last_location_update,omitempty"`
	CustomerRating        *float64            `json:"customer_rating,omitempty"`
	CustomerFeedback      *string             `json:"customer_feedback,omitempty"`
	DeliveryPhotoURL      *string             `json:"delivery_photo_url,omitempty"`
	CancellationReason    *string             `json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// DurationMinutes returns whole minutes between pickup and drop-off, if both happened.
func (d *Delivery) DurationMinutes() (int, bool) {
	if d.PickupTime == nil || d.DeliveryTime == nil {
		return 0, false
	}
	return int(d.DeliveryTime.Sub(*d.PickupTime).Minutes()), true
}

type CreateDeliveryRequest struct {
	OrderID string `json:"order_id"`
}

type AssignPartnerRequest struct {
	PartnerID string `json:"partner_id"`
}

type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type UpdateDeliveryStatusRequest struct {
	Status DeliveryStatus `json:"status"`
	Reason *string        `json:"reason,omitempty"`
}

type VerifyOtpRequest struct {
	Otp string `json:"otp"`
}

// ReissueOtpResponse carries a fresh delivery code to the customer who owns the order
type ReissueOtpResponse struct {
	DeliveryID string `json:"delivery_id"`
	Otp        string `json:"otp"`
}

type RateDeliveryRequest struct {
	Rating   float64 `json:"rating"`
	Feedback *string `json:"feedback,omitempty"`
}

// DeliveryTrackingResponse is the read model served by the tracking endpoints
type DeliveryTrackingResponse struct {
	DeliveryID         string         `json:"delivery_id"`
	OrderID            string         `json:"order_id"`
	Status             DeliveryStatus `json:"status"`
	StatusDisplay      string         `json:"status_display"`
	Trackable          bool           `json:"trackable"`
	InProgress         bool           `json:"in_progress"`
	DeliveryPartnerID  *string        `json:"delivery_partner_id,omitempty"`
	CurrentLatitude    *float64       `json:"current_latitude,omitempty"`
	CurrentLongitude   *float64       `json:"current_longitude,omitempty"`
	LastLocationUpdate *time.Time     `json:"last_location_update,omitempty"`
	DurationMinutes    *int           `json:"duration_minutes,omitempty"`
}

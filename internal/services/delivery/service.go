package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/metrics"
	"food-delivery/internal/models"
	"food-delivery/internal/services/order"
	"food-delivery/internal/storage"
	"food-delivery/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// maxOtpAttempts incorrect codes lock verification until the customer reissues the OTP.
const maxOtpAttempts = 5

// Service drives the delivery state machine and the order transitions it implies
type Service struct {
	store   storage.Store
	orders  *order.Lifecycle
	events  messaging.EventPublisher
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	otpCost int
}

// NewService creates a new delivery service
func NewService(store storage.Store, orders *order.Lifecycle, events messaging.EventPublisher,
	log *logger.Logger, m *metrics.Metrics) *Service {
	if events == nil {
		events = messaging.Discard{}
	}
	return &Service{
		store:   store,
		orders:  orders,
		events:  events,
		logger:  log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		otpCost: bcrypt.DefaultCost,
	}
}

// CreateDelivery opens the delivery of an order. Each order gets at most one;
// a second attempt fails with models.ErrConflict. The plain OTP leaves the
// service only inside the creation notification.
func (s *Service) CreateDelivery(ctx context.Context, orderID, changedBy string) (*models.Delivery, error) {
	requestID := logger.RequestIDFromContext(ctx)

	otp, otpHash, err := generateOtp(s.otpCost)
	if err != nil {
		return nil, err
	}

	var (
		delivery *models.Delivery
		box      messaging.Outbox
	)
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		box.Reset()

		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order %s is %s", models.ErrInvalidTransition, o.OrderNumber, o.Status)
		}

		now := s.now()
		d := &models.Delivery{
			ID:                    uuid.NewString(),
			OrderID:               o.ID,
			Status:                models.DeliveryPending,
			EstimatedDeliveryTime: o.EstimatedDeliveryTime,
			DeliveryFee:           decimal.NewNullDecimal(o.DeliveryFee),
			OtpHash:               otpHash,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.Deliveries().Create(ctx, d); err != nil {
			return err
		}
		if err := s.appendLog(ctx, tx, d, "", changedBy, nil); err != nil {
			return err
		}

		update := s.statusUpdate(o, d, "", changedBy)
		update.DeliveryOtp = otp
		box.AddUpdate(update)

		delivery = d
		return nil
	})
	if err != nil {
		s.logger.Debug("delivery_rejected", "Delivery could not be created", requestID, map[string]interface{}{
			"order_id": orderID,
			"reason":   err.Error(),
		})
		return nil, err
	}

	s.committed(ctx, delivery, &box, true)
	return delivery, nil
}

// AssignDeliveryPartner sets the partner. A PENDING delivery becomes ASSIGNED;
// on other open deliveries only the partner changes.
func (s *Service) AssignDeliveryPartner(ctx context.Context, deliveryID, partnerID, changedBy string) (*models.Delivery, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, validation.ValidationError{Field: "partner_id", Message: "partner_id is required"}
	}

	return s.mutate(ctx, deliveryID, changedBy, nil, func(tx storage.Tx, o *models.Order, d *models.Delivery, box *messaging.Outbox) error {
		if d.Status.IsTerminal() {
			return fmt.Errorf("%w: delivery is already %s", models.ErrInvalidTransition, d.Status)
		}
		d.DeliveryPartnerID = &partnerID
		if d.Status == models.DeliveryPending {
			now := s.now()
			d.Status = models.DeliveryAssigned
			d.AssignedTime = &now
		}
		return nil
	})
}

// UpdateDeliveryLocation records the partner's position while the parcel is on
// the move. A non-empty partnerID must match the assigned partner.
func (s *Service) UpdateDeliveryLocation(ctx context.Context, deliveryID, partnerID string, lat, lng float64) (*models.Delivery, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	var delivery *models.Delivery
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		d, err := tx.Deliveries().FindByIDForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if err := checkPartner(d, partnerID); err != nil {
			return err
		}
		if !d.Status.CanBeTracked() {
			return fmt.Errorf("%w: location updates are not accepted while %s", models.ErrInvalidTransition, d.Status)
		}

		now := s.now()
		d.CurrentLatitude = &lat
		d.CurrentLongitude = &lng
		d.LastLocationUpdate = &now
		d.UpdatedAt = now
		if err := tx.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// UpdateDeliveryStatus moves a delivery along its transition table. PICKED_UP
// sends the order out for delivery; DELIVERED needs a verified OTP and
// completes the order.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, deliveryID string, next models.DeliveryStatus,
	reason *string, partnerID, changedBy string) (*models.Delivery, error) {
	if !next.Valid() {
		return nil, validation.ValidationError{Field: "status", Message: "unknown delivery status"}
	}

	return s.mutate(ctx, deliveryID, changedBy, reason, func(tx storage.Tx, o *models.Order, d *models.Delivery, box *messaging.Outbox) error {
		if err := checkPartner(d, partnerID); err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: delivery cannot move from %s to %s", models.ErrInvalidTransition, d.Status, next)
		}

		now := s.now()
		switch next {
		case models.DeliveryPickedUp:
			d.PickupTime = &now
			if err := s.advanceOrder(ctx, tx, o, models.OrderReadyForPickup, models.OrderOutForDelivery, changedBy, box); err != nil {
				return err
			}
		case models.DeliveryDelivered:
			if !d.IsOtpVerified {
				return fmt.Errorf("%w: delivery OTP has not been verified", models.ErrInvalidTransition)
			}
			d.DeliveryTime = &now
			if err := s.advanceOrder(ctx, tx, o, models.OrderOutForDelivery, models.OrderDelivered, changedBy, box); err != nil {
				return err
			}
		case models.DeliveryCancelled, models.DeliveryFailed, models.DeliveryReturned:
			if reason != nil {
				d.CancellationReason = reason
			}
		}
		d.Status = next
		return nil
	})
}

// advanceOrder moves o from `from` to `to`. An order already at `to` is left alone.
func (s *Service) advanceOrder(ctx context.Context, tx storage.Tx, o *models.Order, from, to models.OrderStatus,
	changedBy string, box *messaging.Outbox) error {
	switch o.Status {
	case to:
		return nil
	case from:
		return s.orders.Apply(ctx, tx, o, to, changedBy, nil, box)
	default:
		return fmt.Errorf("%w: order %s is %s, expected %s", models.ErrInvalidTransition, o.OrderNumber, o.Status, from)
	}
}

// VerifyDeliveryOtp checks the code the customer hands to the partner. Every
// incorrect code is counted; after maxOtpAttempts verification stays locked
// until ReissueDeliveryOtp rotates the code.
func (s *Service) VerifyDeliveryOtp(ctx context.Context, deliveryID, otp, partnerID string) (*models.Delivery, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, validation.ValidationError{Field: "otp", Message: "otp is required"}
	}

	var (
		delivery *models.Delivery
		missed   bool
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		missed = false

		d, err := tx.Deliveries().FindByIDForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if err := checkPartner(d, partnerID); err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return fmt.Errorf("%w: delivery is already %s", models.ErrInvalidTransition, d.Status)
		}
		if d.OtpFailedAttempts >= maxOtpAttempts {
			return fmt.Errorf("%w: too many incorrect codes, the customer must reissue the OTP", models.ErrForbidden)
		}

		ok, err := otpMatches(d.OtpHash, otp)
		if err != nil {
			return fmt.Errorf("verify otp: %w", err)
		}
		if ok {
			d.IsOtpVerified = true
			d.OtpFailedAttempts = 0
		} else {
			d.OtpFailedAttempts++
			missed = true
		}

		d.UpdatedAt = s.now()
		if err := tx.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err == nil && missed {
		err = fmt.Errorf("%w: incorrect delivery OTP, %d attempts left",
			models.ErrForbidden, maxOtpAttempts-delivery.OtpFailedAttempts)
	}
	if err != nil {
		s.logger.Warn("otp_verification_failed", "Delivery OTP was not verified", logger.RequestIDFromContext(ctx), map[string]interface{}{
			"delivery_id": deliveryID,
			"reason":      err.Error(),
		})
		return nil, err
	}
	return delivery, nil
}

// ReissueDeliveryOtp replaces the delivery code of the owner's open delivery
// and clears the failed attempts. The new plain code is returned to the caller
// and never stored.
func (s *Service) ReissueDeliveryOtp(ctx context.Context, deliveryID, ownerID string) (string, *models.Delivery, error) {
	otp, otpHash, err := generateOtp(s.otpCost)
	if err != nil {
		return "", nil, err
	}

	var delivery *models.Delivery
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		d, err := tx.Deliveries().FindByIDForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		o, err := tx.Orders().FindByID(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if o.OwnerID != ownerID {
			return fmt.Errorf("%w: delivery belongs to another customer", models.ErrForbidden)
		}
		if d.Status.IsTerminal() {
			return fmt.Errorf("%w: delivery is already %s", models.ErrInvalidTransition, d.Status)
		}
		if d.IsOtpVerified {
			return fmt.Errorf("%w: delivery OTP is already verified", models.ErrInvalidTransition)
		}

		d.OtpHash = otpHash
		d.OtpFailedAttempts = 0
		d.UpdatedAt = s.now()
		if err := tx.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("otp_reissued", "Delivery OTP reissued", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"delivery_id": delivery.ID,
		"order_id":    delivery.OrderID,
	})
	return otp, delivery, nil
}

// ListPartnerDeliveries returns the deliveries assigned to a partner newest first.
func (s *Service) ListPartnerDeliveries(ctx context.Context, partnerID string) ([]models.Delivery, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, validation.ValidationError{Field: "partner_id", Message: "partner_id is required"}
	}

	deliveries, err := s.store.Deliveries().ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	return deliveries, nil
}

// RateDelivery stores the customer's rating of a completed delivery.
func (s *Service) RateDelivery(ctx context.Context, deliveryID, ownerID string, rating float64, feedback *string) (*models.Delivery, error) {
	if err := validation.ValidateRating(rating); err != nil {
		return nil, err
	}

	var delivery *models.Delivery
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		d, err := tx.Deliveries().FindByIDForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		o, err := tx.Orders().FindByID(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if o.OwnerID != ownerID {
			return fmt.Errorf("%w: delivery belongs to another customer", models.ErrForbidden)
		}
		if d.Status != models.DeliveryDelivered {
			return fmt.Errorf("%w: only delivered orders can be rated", models.ErrInvalidTransition)
		}

		d.CustomerRating = &rating
		d.CustomerFeedback = feedback
		d.UpdatedAt = s.now()
		if err := tx.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// mutate loads a delivery and its order under lock, applies fn and, when the
// status changed, records the transition with notes. The order is locked
// before the delivery, the same order the order lifecycle uses.
func (s *Service) mutate(ctx context.Context, deliveryID, changedBy string, notes *string,
	fn func(tx storage.Tx, o *models.Order, d *models.Delivery, box *messaging.Outbox) error) (*models.Delivery, error) {
	var (
		delivery   *models.Delivery
		orderMoved *models.Order
		moved      bool
		box        messaging.Outbox
	)

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		box.Reset()

		ref, err := tx.Deliveries().FindByID(ctx, deliveryID)
		if err != nil {
			return err
		}
		o, err := tx.Orders().FindByIDForUpdate(ctx, ref.OrderID)
		if err != nil {
			return err
		}
		d, err := tx.Deliveries().FindByIDForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}

		prev, orderPrev := d.Status, o.Status
		if err := fn(tx, o, d, &box); err != nil {
			return err
		}

		d.UpdatedAt = s.now()
		if err := tx.Deliveries().Update(ctx, d); err != nil {
			return err
		}
		moved = d.Status != prev
		if moved {
			if err := s.appendLog(ctx, tx, d, prev, changedBy, notes); err != nil {
				return err
			}
			box.AddUpdate(s.statusUpdate(o, d, prev, changedBy))
		}
		if o.Status != orderPrev {
			orderMoved = o
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if orderMoved != nil {
		s.metrics.Transition(models.EntityOrder, string(orderMoved.Status))
	}
	s.committed(ctx, delivery, &box, moved)
	return delivery, nil
}

func (s *Service) appendLog(ctx context.Context, tx storage.Tx, d *models.Delivery, prev models.DeliveryStatus,
	changedBy string, notes *string) error {
	return tx.StatusLog().Append(ctx, models.StatusLogEntry{
		EntityType: models.EntityDelivery,
		EntityID:   d.ID,
		FromStatus: string(prev),
		ToStatus:   string(d.Status),
		ChangedBy:  changedBy,
		Notes:      notes,
		ChangedAt:  d.UpdatedAt,
	})
}

func (s *Service) statusUpdate(o *models.Order, d *models.Delivery, prev models.DeliveryStatus, changedBy string) *models.StatusUpdateMessage {
	update := models.CreateStatusUpdateMessage(models.EntityDelivery, d.ID, string(prev), string(d.Status), changedBy)
	update.OrderNumber = o.OrderNumber
	update.OwnerID = o.OwnerID
	update.EstimatedCompletion = d.EstimatedDeliveryTime
	return update
}

// committed publishes collected messages and records the transition, if any.
func (s *Service) committed(ctx context.Context, d *models.Delivery, box *messaging.Outbox, moved bool) {
	box.Flush(ctx, s.events, s.logger)

	if moved {
		s.metrics.Transition(models.EntityDelivery, string(d.Status))
	}
	s.logger.Info("delivery_status_changed", "Delivery updated", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"delivery_id": d.ID,
		"order_id":    d.OrderID,
		"status":      d.Status,
	})
}

func checkPartner(d *models.Delivery, partnerID string) error {
	if partnerID == "" {
		return nil
	}
	if d.DeliveryPartnerID == nil || *d.DeliveryPartnerID != partnerID {
		return fmt.Errorf("%w: delivery is assigned to another partner", models.ErrForbidden)
	}
	return nil
}

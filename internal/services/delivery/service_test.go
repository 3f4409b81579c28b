package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"food-delivery/internal/catalog"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/pricing"
	"food-delivery/internal/services/order"
	"food-delivery/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type otpCapture struct {
	mu   sync.Mutex
	otps map[string]string
}

func (o *otpCapture) PublishOrderEvent(context.Context, *models.OrderMessage) error { return nil }

func (o *otpCapture) PublishStatusUpdate(_ context.Context, msg *models.StatusUpdateMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if msg.DeliveryOtp != "" {
		o.otps[msg.EntityID] = msg.DeliveryOtp
	}
	return nil
}

func (o *otpCapture) otp(deliveryID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.otps[deliveryID]
}

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	orders *order.Service
	svc    *Service
	pub    *otpCapture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := catalog.NewMemory(catalog.MenuItem{
		Ref: "pho", RestaurantID: "r1", Name: "Pho", Price: decimal.RequireFromString("11.00"), Available: true,
	})
	store := memory.New()
	pub := &otpCapture{otps: make(map[string]string)}
	orders := order.NewService(store, gw, pub, logger.Nop(), nil, pricing.NewPolicy(5, 2), 30*time.Minute, 2)

	svc := NewService(store, orders.Lifecycle(), pub, logger.Nop(), nil)
	svc.otpCost = bcrypt.MinCost
	return &fixture{ctx: context.Background(), store: store, orders: orders, svc: svc, pub: pub}
}

// confirmedOrder places an order and moves it to CONFIRMED.
func (f *fixture) confirmedOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(f.ctx, "cust-1", &models.CreateOrderRequest{
		DeliveryAddress: models.Address{Line1: "2 River Rd", City: "Hanoi", State: "HN", PostalCode: "100000"},
		Items:           []models.OrderLineRequest{{MenuItemRef: "pho", Quantity: 1}},
	})
	require.NoError(t, err)
	o, err = f.orders.UpdateOrderStatus(f.ctx, o.ID, models.OrderConfirmed, "owner-1", nil)
	require.NoError(t, err)
	return o
}

func (f *fixture) advanceOrder(t *testing.T, orderID string, steps ...models.OrderStatus) {
	t.Helper()
	for _, st := range steps {
		_, err := f.orders.UpdateOrderStatus(f.ctx, orderID, st, "owner-1", nil)
		require.NoError(t, err)
	}
}

// inTransit returns an order that is OUT_FOR_DELIVERY with its delivery IN_TRANSIT
// under partner-1.
func (f *fixture) inTransit(t *testing.T) (*models.Order, *models.Delivery) {
	t.Helper()
	o := f.confirmedOrder(t)
	f.advanceOrder(t, o.ID, models.OrderPreparing, models.OrderReadyForPickup)
	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)
	f.step(t, d.ID, models.DeliveryPartnerAccepted, models.DeliveryPickedUp, models.DeliveryInTransit)
	return o, d
}

// wrongOtp returns a well-formed code that differs from otp.
func wrongOtp(otp string) string {
	if otp == "1000" {
		return "1001"
	}
	return "1000"
}

func (f *fixture) step(t *testing.T, deliveryID string, steps ...models.DeliveryStatus) {
	t.Helper()
	for _, st := range steps {
		_, err := f.svc.UpdateDeliveryStatus(f.ctx, deliveryID, st, nil, "", "partner-1")
		require.NoError(t, err)
	}
}

func TestCreateDelivery(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)

	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPending, d.Status)
	assert.Equal(t, o.EstimatedDeliveryTime, d.EstimatedDeliveryTime)
	assert.True(t, d.DeliveryFee.Valid)

	otp := f.pub.otp(d.ID)
	require.Len(t, otp, 4)
	assert.GreaterOrEqual(t, otp, "1000")
	assert.NotEqual(t, otp, d.OtpHash)

	_, err = f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.svc.CreateDelivery(f.ctx, "missing", "admin")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAssignDeliveryPartner(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)
	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, " ", "admin")
	assert.ErrorIs(t, err, models.ErrValidation)

	assigned, err := f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryAssigned, assigned.Status)
	assert.Equal(t, "partner-1", *assigned.DeliveryPartnerID)
	require.NotNil(t, assigned.AssignedTime)

	f.step(t, d.ID, models.DeliveryPartnerAccepted)
	reassigned, err := f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-2", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPartnerAccepted, reassigned.Status)
	assert.Equal(t, "partner-2", *reassigned.DeliveryPartnerID)
	assert.Equal(t, assigned.AssignedTime, reassigned.AssignedTime)

	f.step(t, d.ID, models.DeliveryCancelled)
	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-3", "admin")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUpdateDeliveryLocation(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)
	f.advanceOrder(t, o.ID, models.OrderPreparing, models.OrderReadyForPickup)
	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryLocation(f.ctx, d.ID, "partner-1", 21.0, 105.8)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "not trackable before pickup")

	f.step(t, d.ID, models.DeliveryPartnerAccepted, models.DeliveryPickedUp)

	tests := []struct {
		name    string
		partner string
		lat     float64
		lng     float64
		wantErr error
	}{
		{"valid", "partner-1", 21.03, 105.85, nil},
		{"latitude out of range", "partner-1", 91, 0, models.ErrValidation},
		{"longitude out of range", "partner-1", 0, -181, models.ErrValidation},
		{"other partner", "partner-2", 21, 105, models.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.UpdateDeliveryLocation(f.ctx, d.ID, tt.partner, tt.lat, tt.lng)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lat, *got.CurrentLatitude)
			assert.Equal(t, tt.lng, *got.CurrentLongitude)
			assert.NotNil(t, got.LastLocationUpdate)
		})
	}

	f.step(t, d.ID, models.DeliveryInTransit)
	moving, err := f.svc.UpdateDeliveryLocation(f.ctx, d.ID, "partner-1", 21.05, 105.9)
	require.NoError(t, err, "in-transit deliveries keep reporting their position")
	assert.Equal(t, 21.05, *moving.CurrentLatitude)
	assert.Equal(t, 105.9, *moving.CurrentLongitude)

	f.step(t, d.ID, models.DeliveryReturned)
	_, err = f.svc.UpdateDeliveryLocation(f.ctx, d.ID, "partner-1", 21.05, 105.9)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "closed deliveries are not tracked")
}

func TestDeliveryLifecycle_DrivesOrder(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)
	f.advanceOrder(t, o.ID, models.OrderPreparing, models.OrderReadyForPickup)

	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)
	f.step(t, d.ID, models.DeliveryPartnerAccepted, models.DeliveryPickedUp)

	got, err := f.orders.GetOrder(f.ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderOutForDelivery, got.Status)

	f.step(t, d.ID, models.DeliveryInTransit)

	_, err = f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryDelivered, nil, "partner-1", "partner-1")
	require.ErrorIs(t, err, models.ErrInvalidTransition, "delivery needs a verified OTP")

	_, err = f.svc.VerifyDeliveryOtp(f.ctx, d.ID, "0000", "partner-1")
	require.ErrorIs(t, err, models.ErrForbidden)

	verified, err := f.svc.VerifyDeliveryOtp(f.ctx, d.ID, f.pub.otp(d.ID), "partner-1")
	require.NoError(t, err)
	assert.True(t, verified.IsOtpVerified)

	done, err := f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryDelivered, nil, "partner-1", "partner-1")
	require.NoError(t, err)
	require.NotNil(t, done.DeliveryTime)
	minutes, ok := done.DurationMinutes()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, minutes, 0)

	got, err = f.orders.GetOrder(f.ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, got.Status)
	assert.NotNil(t, got.ActualDeliveryTime)

	history, err := f.store.StatusLog().History(f.ctx, models.EntityDelivery, d.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestUpdateDeliveryStatus_PickupBeforeOrderReady(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)

	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)
	f.step(t, d.ID, models.DeliveryPartnerAccepted)

	_, err = f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryPickedUp, nil, "", "partner-1")
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := f.store.Deliveries().FindByID(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPartnerAccepted, stored.Status)
}

func TestUpdateDeliveryStatus_Rejections(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)
	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryStatus("LOST"), nil, "", "admin")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryAssigned, nil, "", "admin")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "assignment goes through AssignDeliveryPartner")

	_, err = f.svc.UpdateDeliveryStatus(f.ctx, "missing", models.DeliveryCancelled, nil, "", "admin")
	assert.ErrorIs(t, err, models.ErrNotFound)

	reason := "restaurant closed"
	cancelled, err := f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryCancelled, &reason, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, reason, *cancelled.CancellationReason)
}

func TestRateDelivery(t *testing.T) {
	f := newFixture(t)
	o := f.confirmedOrder(t)
	f.advanceOrder(t, o.ID, models.OrderPreparing, models.OrderReadyForPickup)
	d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.RateDelivery(f.ctx, d.ID, "cust-1", 4.5, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "not delivered yet")

	_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
	require.NoError(t, err)
	f.step(t, d.ID, models.DeliveryPartnerAccepted, models.DeliveryPickedUp, models.DeliveryInTransit)
	_, err = f.svc.VerifyDeliveryOtp(f.ctx, d.ID, f.pub.otp(d.ID), "")
	require.NoError(t, err)
	f.step(t, d.ID, models.DeliveryDelivered)

	_, err = f.svc.RateDelivery(f.ctx, d.ID, "cust-1", 6, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.RateDelivery(f.ctx, d.ID, "cust-2", 4, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	feedback := "hot and fast"
	rated, err := f.svc.RateDelivery(f.ctx, d.ID, "cust-1", 4.5, &feedback)
	require.NoError(t, err)
	assert.Equal(t, 4.5, *rated.CustomerRating)
	assert.Equal(t, feedback, *rated.CustomerFeedback)
}

func TestOtp(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp, hash, err := generateOtp(bcrypt.MinCost)
		require.NoError(t, err)
		require.Len(t, otp, 4)
		assert.True(t, otp >= "1000" && otp <= "9999", otp)

		ok, err := otpMatches(hash, otp)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = otpMatches(hash, "abcd")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestUpdateOrderStatus_CannotSkipDelivery(t *testing.T) {
	f := newFixture(t)
	o, d := f.inTransit(t)

	tests := []struct {
		name string
		next models.OrderStatus
	}{
		{"delivered without otp", models.OrderDelivered},
		{"out for delivery again", models.OrderOutForDelivery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.UpdateOrderStatus(f.ctx, o.ID, tt.next, "owner-1", nil)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		})
	}

	got, err := f.orders.GetOrder(f.ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderOutForDelivery, got.Status)
	assert.Nil(t, got.ActualDeliveryTime)

	stored, err := f.store.Deliveries().FindByID(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryInTransit, stored.Status)
	assert.False(t, stored.IsOtpVerified)
}

func TestVerifyDeliveryOtp_LocksAfterRepeatedMisses(t *testing.T) {
	f := newFixture(t)
	o, d := f.inTransit(t)
	otp := f.pub.otp(d.ID)

	for i := 1; i <= maxOtpAttempts; i++ {
		_, err := f.svc.VerifyDeliveryOtp(f.ctx, d.ID, wrongOtp(otp), "partner-1")
		require.ErrorIs(t, err, models.ErrForbidden)

		stored, err := f.store.Deliveries().FindByID(f.ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, i, stored.OtpFailedAttempts, "misses are committed")
	}

	_, err := f.svc.VerifyDeliveryOtp(f.ctx, d.ID, otp, "partner-1")
	require.ErrorIs(t, err, models.ErrForbidden, "the right code no longer works once locked")

	fresh, _, err := f.svc.ReissueDeliveryOtp(f.ctx, d.ID, o.OwnerID)
	require.NoError(t, err)

	_, err = f.svc.VerifyDeliveryOtp(f.ctx, d.ID, otp, "partner-1")
	if otp != fresh {
		require.ErrorIs(t, err, models.ErrForbidden, "the old code is replaced")
	}

	verified, err := f.svc.VerifyDeliveryOtp(f.ctx, d.ID, fresh, "partner-1")
	require.NoError(t, err)
	assert.True(t, verified.IsOtpVerified)
	assert.Zero(t, verified.OtpFailedAttempts)
}

func TestReissueDeliveryOtp(t *testing.T) {
	f := newFixture(t)
	// Events are dropped, so the code from creation never reaches anyone.
	f.svc = NewService(f.store, f.orders.Lifecycle(), nil, logger.Nop(), nil)
	f.svc.otpCost = bcrypt.MinCost
	o, d := f.inTransit(t)
	require.Empty(t, f.pub.otp(d.ID))

	tests := []struct {
		name       string
		deliveryID string
		ownerID    string
		wantErr    error
	}{
		{"unknown delivery", "missing", o.OwnerID, models.ErrNotFound},
		{"another customer", d.ID, "cust-2", models.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.ReissueDeliveryOtp(f.ctx, tt.deliveryID, tt.ownerID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	before, err := f.store.Deliveries().FindByID(f.ctx, d.ID)
	require.NoError(t, err)

	otp, reissued, err := f.svc.ReissueDeliveryOtp(f.ctx, d.ID, o.OwnerID)
	require.NoError(t, err)
	require.Len(t, otp, 4)
	assert.NotEqual(t, before.OtpHash, reissued.OtpHash)

	_, err = f.svc.VerifyDeliveryOtp(f.ctx, d.ID, otp, "partner-1")
	require.NoError(t, err)

	_, _, err = f.svc.ReissueDeliveryOtp(f.ctx, d.ID, o.OwnerID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "a verified code is not replaced")

	f.step(t, d.ID, models.DeliveryDelivered)
	got, err := f.orders.GetOrder(f.ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, got.Status)
}

func TestRefund_ClosesDelivery(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture) (*models.Order, *models.Delivery)
		wantDS models.DeliveryStatus
	}{
		{
			name: "before pickup",
			setup: func(t *testing.T, f *fixture) (*models.Order, *models.Delivery) {
				o := f.confirmedOrder(t)
				f.advanceOrder(t, o.ID, models.OrderPreparing, models.OrderReadyForPickup)
				d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
				require.NoError(t, err)
				_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, "partner-1", "admin")
				require.NoError(t, err)
				return o, d
			},
			wantDS: models.DeliveryCancelled,
		},
		{
			name: "parcel on the road",
			setup: func(t *testing.T, f *fixture) (*models.Order, *models.Delivery) {
				return f.inTransit(t)
			},
			wantDS: models.DeliveryReturned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o, d := tt.setup(t, f)

			reason := "customer refunded"
			refunded, err := f.orders.UpdateOrderStatus(f.ctx, o.ID, models.OrderRefunded, "admin", &reason)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)

			stored, err := f.store.Deliveries().FindByID(f.ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDS, stored.Status)
			require.NotNil(t, stored.CancellationReason)
			assert.Equal(t, reason, *stored.CancellationReason)

			history, err := f.store.StatusLog().History(f.ctx, models.EntityDelivery, d.ID)
			require.NoError(t, err)
			last := history[len(history)-1]
			assert.Equal(t, string(tt.wantDS), last.ToStatus)
			assert.Equal(t, "admin", last.ChangedBy)

			_, err = f.svc.UpdateDeliveryLocation(f.ctx, d.ID, "partner-1", 21, 105)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			_, err = f.svc.UpdateDeliveryStatus(f.ctx, d.ID, models.DeliveryDelivered, nil, "partner-1", "partner-1")
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		})
	}
}

func TestListPartnerDeliveries(t *testing.T) {
	f := newFixture(t)

	var mine []string
	for _, partner := range []string{"partner-1", "partner-2", "partner-1"} {
		o := f.confirmedOrder(t)
		d, err := f.svc.CreateDelivery(f.ctx, o.ID, "admin")
		require.NoError(t, err)
		_, err = f.svc.AssignDeliveryPartner(f.ctx, d.ID, partner, "admin")
		require.NoError(t, err)
		if partner == "partner-1" {
			mine = append([]string{d.ID}, mine...)
		}
	}

	list, err := f.svc.ListPartnerDeliveries(f.ctx, "partner-1")
	require.NoError(t, err)
	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, mine, ids)

	none, err := f.svc.ListPartnerDeliveries(f.ctx, "partner-9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.svc.ListPartnerDeliveries(f.ctx, " ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	calls []string
	err   error
}

func (f *fakeCreator) CreateDelivery(_ context.Context, orderID, _ string) (*models.Delivery, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Delivery{ID: "d-" + orderID, OrderID: orderID, Status: models.DeliveryPending}, nil
}

// replaySource hands every body to the handler, then waits for cancellation.
type replaySource struct {
	bodies  [][]byte
	results []error
	closed  bool
}

func (r *replaySource) StartConsuming(ctx context.Context, handler messaging.MessageHandler) error {
	for _, b := range r.bodies {
		r.results = append(r.results, handler(ctx, b))
	}
	<-ctx.Done()
	return ctx.Err()
}

func (r *replaySource) Close() error {
	r.closed = true
	return nil
}

func body(t *testing.T, event, orderID string) []byte {
	t.Helper()
	b, err := json.Marshal(models.OrderMessage{Event: event, OrderID: orderID, OrderNumber: "ORD-" + orderID})
	require.NoError(t, err)
	return b
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name          string
		body          func(t *testing.T) []byte
		createErr     error
		wantCalls     int
		wantErr       bool
		wantPermanent bool
	}{
		{
			name:      "confirmed order opens delivery",
			body:      func(t *testing.T) []byte { return body(t, models.EventOrderConfirmed, "o1") },
			wantCalls: 1,
		},
		{
			name:      "other events are skipped",
			body:      func(t *testing.T) []byte { return body(t, models.EventOrderPlaced, "o1") },
			wantCalls: 0,
		},
		{
			name:      "existing delivery is acknowledged",
			body:      func(t *testing.T) []byte { return body(t, models.EventOrderConfirmed, "o1") },
			createErr: fmt.Errorf("%w: duplicate", models.ErrConflict),
			wantCalls: 1,
		},
		{
			name:          "unknown order is dropped",
			body:          func(t *testing.T) []byte { return body(t, models.EventOrderConfirmed, "o1") },
			createErr:     models.ErrNotFound,
			wantCalls:     1,
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:      "storage failure is retried",
			body:      func(t *testing.T) []byte { return body(t, models.EventOrderConfirmed, "o1") },
			createErr: fmt.Errorf("%w: connection reset", models.ErrStorage),
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:          "malformed body is dropped",
			body:          func(*testing.T) []byte { return []byte("{not json") },
			wantErr:       true,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &fakeCreator{err: tt.createErr}
			w := NewWorker("dispatch-1", nil, creator, logger.Nop())

			err := w.handleMessage(context.Background(), tt.body(t))
			assert.Len(t, creator.calls, tt.wantCalls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, messaging.IsPermanent(err))
		})
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	src := &replaySource{bodies: [][]byte{
		body(t, models.EventOrderConfirmed, "o1"),
		body(t, models.EventOrderCancelled, "o2"),
	}}
	creator := &fakeCreator{}
	w := NewWorker("dispatch-1", src, creator, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()
	err := <-done
	require.NoError(t, err)
	assert.True(t, src.closed)
	assert.Equal(t, []string{"o1"}, creator.calls)
	for _, r := range src.results {
		assert.False(t, errors.Is(r, models.ErrNotFound))
	}
}

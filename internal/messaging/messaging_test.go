package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want outcome
	}{
		{"success", nil, outcomeAck},
		{"transient", errors.New("db down"), outcomeRequeue},
		{"permanent", Permanent(errors.New("bad payload")), outcomeDrop},
		{"wrapped permanent", errors.Join(errors.New("ctx"), Permanent(errors.New("x"))), outcomeDrop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.err))
		})
	}
}

func TestParseMessage(t *testing.T) {
	var msg models.OrderMessage
	require.NoError(t, ParseMessage([]byte(`{"event":"order.confirmed","order_id":"o1"}`), &msg))
	assert.Equal(t, "o1", msg.OrderID)

	err := ParseMessage([]byte(`{not json`), &msg)
	assert.Equal(t, outcomeDrop, decide(err))
}

func TestNewPublishingCarriesRequestID(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-42")
	msg := models.CreateStatusUpdateMessage(models.EntityOrder, "o1", "PLACED", "CONFIRMED", "restaurant")

	p, err := newPublishing(ctx, msg, true)
	require.NoError(t, err)

	assert.Equal(t, amqp091.Persistent, p.DeliveryMode)
	assert.Equal(t, "req-42", p.Headers[requestIDHeader])
	assert.Equal(t, "req-42", requestIDOf(amqp091.Delivery{Headers: p.Headers}))

	var decoded models.StatusUpdateMessage
	require.NoError(t, json.Unmarshal(p.Body, &decoded))
	assert.Equal(t, "CONFIRMED", decoded.NewStatus)
}

func TestDefaultTopology(t *testing.T) {
	topo := DefaultTopology()

	declared := map[string]bool{}
	for _, q := range topo.Queues {
		declared[q.Name] = true
	}
	for _, b := range topo.Bindings {
		assert.True(t, declared[b.Queue], "binding to undeclared queue %s", b.Queue)
	}
	assert.Contains(t, topo.Bindings, Binding{Queue: DispatchQueue, RoutingKey: models.EventOrderConfirmed, Exchange: OrdersExchange})
}

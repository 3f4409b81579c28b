package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.OrderCreated("cart")
	m.OrderCreated("cart")
	m.Transition("order", "CONFIRMED")
	m.CartOperation("add")
	m.ObserveHTTP(http.MethodPost, "/api/orders", http.StatusCreated, 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("order", "CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/orders", "201")))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("items")
		m.Transition("delivery", "PICKED_UP")
		m.MessageConsumed("dispatch", "ack")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CartOperation("clear")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "food_delivery_cart_operations_total"))
}

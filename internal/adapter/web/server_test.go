package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"food-delivery/internal/adapter/web"
	"food-delivery/internal/catalog"
	"food-delivery/internal/config"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"
	"food-delivery/internal/metrics"
	"food-delivery/internal/models"
	"food-delivery/internal/pricing"
	"food-delivery/internal/services/cart"
	"food-delivery/internal/services/order"
	"food-delivery/internal/services/tracking"
	"food-delivery/internal/storage/memory"
	"food-delivery/internal/validation"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validation.ValidationError{Field: "quantity", Message: "bad"}, http.StatusBadRequest},
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: not yours", models.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("order x: %w", models.ErrNotFound), http.StatusNotFound},
		{"conflict", models.ErrConflict, http.StatusConflict},
		{"invalid transition", models.ErrInvalidTransition, http.StatusConflict},
		{"unavailable", models.ErrUnavailable, http.StatusUnprocessableEntity},
		{"storage", models.ErrStorage, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"echo", echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, web.StatusFor(tt.err))
		})
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		health     web.HealthChecker
		wantStatus int
		wantBody   string
	}{
		{"healthy", pinger{}, http.StatusOK, "ok"},
		{"store down", pinger{err: models.ErrStorage}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := web.NewServer(config.ServerConfig{Port: 3000}, "test", logger.Nop(), nil, tt.health, nil)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "req-42")
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
			assert.Equal(t, "test", body["service"])
		})
	}
}

type api struct {
	t       *testing.T
	handler http.Handler
	gw      *identity.Gateway
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.Nop()
	store := memory.New()
	items := catalog.NewMemory(
		catalog.MenuItem{Ref: "burger", RestaurantID: "r1", Name: "Burger", Type: models.ItemNonVeg,
			Price: decimal.RequireFromString("10.00"), Available: true},
	)
	gw := identity.NewGateway("test-secret", "food-delivery")
	m := metrics.New()

	orderSvc := order.NewService(store, items, nil, log, m, pricing.NewPolicy(5, 2), 45*time.Minute, 2)
	srv := web.NewServer(config.ServerConfig{Port: 3000, RequestTimeout: 5 * time.Second}, "test", log, m, store, gw.Middleware(),
		cart.NewHandler(cart.NewService(store, items, log, m, 2), log),
		order.NewHandler(orderSvc, log),
		tracking.NewHandler(tracking.NewService(store, log), log),
	)
	return &api{t: t, handler: srv.Handler(), gw: gw}
}

func (a *api) do(method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		token, err := a.gw.IssueToken(userID, role, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAPI_CartToTrackedOrder(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/api/cart", "u1", identity.RoleCustomer,
		models.AddToCartRequest{MenuItemRef: "burger", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/orders", "u1", identity.RoleCustomer, models.CreateOrderRequest{
		FromCart:        true,
		DeliveryAddress: models.Address{Line1: "1 Main St", City: "Pune", State: "MH", PostalCode: "411001"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.OrderPlaced, created.Status)
	assert.True(t, decimal.RequireFromString("23.00").Equal(created.TotalAmount), created.TotalAmount.String())

	rec = a.do(http.MethodGet, "/api/cart/count", "u1", identity.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/orders/restaurant/r1?status=PLACED", "owner-1", identity.RoleRestaurantOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var queue []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, created.OrderID, queue[0].ID)

	rec = a.do(http.MethodPatch, "/api/orders/"+created.OrderID+"/status", "owner-1", identity.RoleRestaurantOwner,
		models.UpdateOrderStatusRequest{Status: models.OrderDelivered})
	assert.Equal(t, http.StatusConflict, rec.Code, "delivery-driven statuses are not set by the restaurant")

	rec = a.do(http.MethodPatch, "/api/orders/"+created.OrderID+"/status", "owner-1", identity.RoleRestaurantOwner,
		models.UpdateOrderStatusRequest{Status: models.OrderConfirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/tracking/orders/"+created.OrderNumber+"/status", "u1", identity.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tracked models.OrderTrackingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracked))
	assert.Equal(t, string(models.OrderConfirmed), tracked.CurrentStatus)
	assert.NotNil(t, tracked.EstimatedDeliveryTime)

	rec = a.do(http.MethodGet, "/api/tracking/orders/"+created.OrderNumber+"/status", "u2", identity.RoleCustomer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Errors(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		role       string
		body       interface{}
		wantStatus int
		wantField  string
	}{
		{
			name:       "missing token",
			method:     http.MethodGet,
			path:       "/api/cart",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong role",
			method:     http.MethodPatch,
			path:       "/api/orders/o1/status",
			userID:     "u1",
			role:       identity.RoleCustomer,
			body:       models.UpdateOrderStatusRequest{Status: models.OrderConfirmed},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "invalid quantity",
			method:     http.MethodPost,
			path:       "/api/cart",
			userID:     "u1",
			role:       identity.RoleCustomer,
			body:       models.AddToCartRequest{MenuItemRef: "burger", Quantity: 0},
			wantStatus: http.StatusBadRequest,
			wantField:  "quantity",
		},
		{
			name:       "unknown order",
			method:     http.MethodGet,
			path:       "/api/orders/missing",
			userID:     "u1",
			role:       identity.RoleCustomer,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty cart",
			method:     http.MethodPost,
			path:       "/api/orders",
			userID:     "u1",
			role:       identity.RoleCustomer,
			body:       models.CreateOrderRequest{FromCart: true, DeliveryAddress: models.Address{Line1: "1 Main St", City: "Pune", State: "MH", PostalCode: "411001"}},
			wantStatus: http.StatusBadRequest,
			wantField:  "cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.userID, tt.role, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := errorBody(t, rec)
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["request_id"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
		})
	}
}

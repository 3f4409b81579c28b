package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"food-delivery/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	g := NewGateway("secret", "food-delivery")

	token, err := g.IssueToken("user-1", RoleCustomer, time.Hour)
	require.NoError(t, err)

	p, err := g.ResolveUser(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, RoleCustomer, p.Role)
}

func TestResolveUser_Rejects(t *testing.T) {
	g := NewGateway("secret", "food-delivery")
	other := NewGateway("other-secret", "food-delivery")
	wrongIssuer := NewGateway("secret", "someone-else")

	forged, err := other.IssueToken("user-1", RoleCustomer, time.Hour)
	require.NoError(t, err)
	foreign, err := wrongIssuer.IssueToken("user-1", RoleCustomer, time.Hour)
	require.NoError(t, err)
	expired, err := g.IssueToken("user-1", RoleCustomer, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"expired", expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ResolveUser(tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthenticated)
		})
	}
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	g := NewGateway("secret", "food-delivery")
	e := echo.New()

	handler := g.Middleware()(RequireRole(RoleDeliveryPartner)(func(c echo.Context) error {
		p, err := FromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, p.UserID)
	}))

	call := func(header string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		return rec, handler(e.NewContext(req, rec))
	}

	_, err := call("")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	customer, _ := g.IssueToken("u1", RoleCustomer, time.Hour)
	_, err = call("Bearer " + customer)
	assert.ErrorIs(t, err, models.ErrForbidden)

	partner, _ := g.IssueToken("p1", RoleDeliveryPartner, time.Hour)
	rec, err := call("Bearer " + partner)
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.Body.String())

	admin, _ := g.IssueToken("a1", RoleAdmin, time.Hour)
	_, err = call("bearer " + admin)
	assert.NoError(t, err)
}

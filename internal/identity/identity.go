// Package identity resolves bearer tokens to the calling user.
package identity

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"food-delivery/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Roles carried in tokens
const (
	RoleCustomer        = "customer"
	RoleRestaurantOwner = "restaurant_owner"
	RoleDeliveryPartner = "delivery_partner"
	RoleAdmin           = "admin"
)

const principalKey = "auth_principal"

// Claims defines JWT payload structure
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string
}

// Gateway signs and verifies HS256 tokens.
type Gateway struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewGateway(secret, issuer string) *Gateway {
	return &Gateway{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// IssueToken creates a signed token for userID valid for ttl.
func (g *Gateway) IssueToken(userID, role string, ttl time.Duration) (string, error) {
	now := g.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    g.issuer,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(g.secret)
}

// ResolveUser verifies token and returns its principal, or models.ErrUnauthenticated.
func (g *Gateway) ResolveUser(token string) (Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: invalid or expired token", models.ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return Principal{}, fmt.Errorf("%w: token has no user", models.ErrUnauthenticated)
	}
	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// Middleware validates the bearer token and stores the principal on the echo context.
func (g *Gateway) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return fmt.Errorf("%w: missing authorization header", models.ErrUnauthenticated)
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return fmt.Errorf("%w: invalid authorization header", models.ErrUnauthenticated)
			}

			p, err := g.ResolveUser(parts[1])
			if err != nil {
				return err
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role is not listed. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := FromContext(c)
			if err != nil {
				return err
			}
			if p.Role != RoleAdmin && !slices.Contains(roles, p.Role) {
				return fmt.Errorf("%w: role %q may not call %s %s", models.ErrForbidden, p.Role, c.Request().Method, c.Path())
			}
			return next(c)
		}
	}
}

// FromContext returns the principal set by Middleware.
func FromContext(c echo.Context) (Principal, error) {
	if p, ok := c.Get(principalKey).(Principal); ok {
		return p, nil
	}
	return Principal{}, fmt.Errorf("%w: no principal on request", models.ErrUnauthenticated)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"food-delivery/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, models.ErrStorage},
		{"driver error", errors.New("conn reset"), models.ErrStorage},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapErr(tt.in), tt.want)
		})
	}
	assert.NoError(t, mapErr(nil))
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, isDomainError(fmt.Errorf("cart: %w", models.ErrForbidden)))
	assert.False(t, isDomainError(errors.New("plain")))
}

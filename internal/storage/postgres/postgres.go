// Package postgres implements the storage ports on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"food-delivery/internal/database"
	"food-delivery/internal/models"
	"food-delivery/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *database.DB
	stores
}

var _ storage.Store = (*Store)(nil)

func New(db *database.DB) *Store {
	return &Store{db: db, stores: stores{q: db.Pool}}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(stores{q: tx})
	})
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return mapErr(err)
}

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.db.Ping(ctx))
}

type stores struct {
	q queryer
}

func (s stores) Carts() storage.CartStore          { return &cartRepo{q: s.q} }
func (s stores) Orders() storage.OrderStore        { return &orderRepo{q: s.q} }
func (s stores) Deliveries() storage.DeliveryStore { return &deliveryRepo{q: s.q} }
func (s stores) StatusLog() storage.StatusLogStore { return &statusLogRepo{q: s.q} }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return models.ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		models.ErrValidation, models.ErrNotFound, models.ErrForbidden, models.ErrUnavailable,
		models.ErrInvalidTransition, models.ErrConflict, models.ErrStorage, models.ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Package storage defines the persistence ports used by the services.
// Adapters return models.ErrNotFound, models.ErrConflict and models.ErrStorage
// so callers can match with errors.Is.
package storage

import (
	"context"

	"food-delivery/internal/models"
)

type CartStore interface {
	// UpsertAdd inserts line or, if (OwnerID, MenuItemRef) already exists, adds
	// its quantity to the stored one and overwrites the instructions. Atomic.
	UpsertAdd(ctx context.Context, line *models.CartLine) (*models.CartLine, error)
	FindByID(ctx context.Context, id string) (*models.CartLine, error)
	// ListByOwner returns the owner's lines newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.CartLine, error)
	// ListByOwnerForUpdate is ListByOwner holding row locks until the transaction ends.
	ListByOwnerForUpdate(ctx context.Context, ownerID string) ([]models.CartLine, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (*models.CartLine, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) error
	// DeleteByIDs removes exactly the given lines. Unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}

type OrderStore interface {
	// Create persists the header and all items. ErrConflict on a duplicate order number.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	// ListByOwner returns the owner's orders newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error)
	// ListByRestaurant returns a restaurant's orders oldest first. An empty
	// status matches every status.
	ListByRestaurant(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error)
	// Update writes the mutable lifecycle fields of an existing order.
	Update(ctx context.Context, order *models.Order) error
}

type DeliveryStore interface {
	// Create fails with ErrConflict when the order already has a delivery.
	Create(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, id string) (*models.Delivery, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.Delivery, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Delivery, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Delivery, error)
	// ListByPartner returns the deliveries assigned to a partner newest first.
	ListByPartner(ctx context.Context, partnerID string) ([]models.Delivery, error)
	Update(ctx context.Context, delivery *models.Delivery) error
}

type StatusLogStore interface {
	Append(ctx context.Context, entry models.StatusLogEntry) error
	// History returns the entries for one entity oldest first.
	History(ctx context.Context, entityType, entityID string) ([]models.StatusLogEntry, error)
}

// Tx groups the stores bound to one unit of work.
type Tx interface {
	Carts() CartStore
	Orders() OrderStore
	Deliveries() DeliveryStore
	StatusLog() StatusLogStore
}

// Store is Tx outside a transaction plus the means to open one.
type Store interface {
	Tx
	// WithTx runs fn in a transaction committed when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

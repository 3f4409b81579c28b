package tracking

import "food-delivery/internal/storage"

// Repositories are the read sides tracking needs. storage.Store satisfies it.
type Repositories interface {
	Orders() storage.OrderStore
	Deliveries() storage.DeliveryStore
	StatusLog() storage.StatusLogStore
}

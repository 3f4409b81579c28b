package memory

import (
	"context"
	"slices"
	"time"

	"food-delivery/internal/models"

	"github.com/google/uuid"
)

type cartStore struct {
	run runner
	now func() time.Time
}

func (c *cartStore) UpsertAdd(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	var out models.CartLine
	err := c.run(func(st *state) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := c.now()
		key := cartKey{owner: line.OwnerID, ref: line.MenuItemRef}

		if id, ok := st.cartIndex[key]; ok {
			existing := st.carts[id]
			existing.Quantity += line.Quantity
			existing.SpecialInstructions = line.SpecialInstructions
			existing.UpdatedAt = now
			st.carts[id] = existing
			out = existing
			return nil
		}

		created := *line
		if created.ID == "" {
			created.ID = uuid.NewString()
		}
		created.CreatedAt, created.UpdatedAt = now, now
		st.carts[created.ID] = created
		st.cartSeq[created.ID] = st.next()
		st.cartIndex[key] = created.ID
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *cartStore) FindByID(ctx context.Context, id string) (*models.CartLine, error) {
	var out models.CartLine
	err := c.run(func(st *state) error {
		line, ok := st.carts[id]
		if !ok {
			return models.ErrNotFound
		}
		out = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *cartStore) ListByOwner(ctx context.Context, ownerID string) ([]models.CartLine, error) {
	var out []models.CartLine
	err := c.run(func(st *state) error {
		for _, line := range st.carts {
			if line.OwnerID == ownerID {
				out = append(out, line)
			}
		}
		slices.SortFunc(out, func(a, b models.CartLine) int {
			if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
				return n
			}
			return int(st.cartSeq[b.ID] - st.cartSeq[a.ID])
		})
		return nil
	})
	return out, err
}

func (c *cartStore) ListByOwnerForUpdate(ctx context.Context, ownerID string) ([]models.CartLine, error) {
	return c.ListByOwner(ctx, ownerID)
}

func (c *cartStore) UpdateQuantity(ctx context.Context, id string, quantity int) (*models.CartLine, error) {
	var out models.CartLine
	err := c.run(func(st *state) error {
		line, ok := st.carts[id]
		if !ok {
			return models.ErrNotFound
		}
		line.Quantity = quantity
		line.UpdatedAt = c.now()
		st.carts[id] = line
		out = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *cartStore) Delete(ctx context.Context, id string) error {
	return c.run(func(st *state) error {
		line, ok := st.carts[id]
		if !ok {
			return models.ErrNotFound
		}
		delete(st.carts, id)
		delete(st.cartSeq, id)
		delete(st.cartIndex, cartKey{owner: line.OwnerID, ref: line.MenuItemRef})
		return nil
	})
}

func (c *cartStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	return c.run(func(st *state) error {
		for id, line := range st.carts {
			if line.OwnerID == ownerID {
				delete(st.carts, id)
				delete(st.cartSeq, id)
				delete(st.cartIndex, cartKey{owner: line.OwnerID, ref: line.MenuItemRef})
			}
		}
		return nil
	})
}

func (c *cartStore) DeleteByIDs(ctx context.Context, ids []string) error {
	return c.run(func(st *state) error {
		for _, id := range ids {
			line, ok := st.carts[id]
			if !ok {
				continue
			}
			delete(st.carts, id)
			delete(st.cartSeq, id)
			delete(st.cartIndex, cartKey{owner: line.OwnerID, ref: line.MenuItemRef})
		}
		return nil
	})
}

func (c *cartStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := c.run(func(st *state) error {
		for _, line := range st.carts {
			if line.OwnerID == ownerID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type orderStore struct {
	run runner
}

func copyOrder(o models.Order) *models.Order {
	o.Items = slices.Clone(o.Items)
	return &o
}

func (s *orderStore) Create(ctx context.Context, order *models.Order) error {
	return s.run(func(st *state) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := st.orders[order.ID]; ok {
			return models.ErrConflict
		}
		if _, ok := st.orderNumbers[order.OrderNumber]; ok {
			return models.ErrConflict
		}
		st.orders[order.ID] = *copyOrder(*order)
		st.orderSeq[order.ID] = st.next()
		st.orderNumbers[order.OrderNumber] = order.ID
		return nil
	})
}

func (s *orderStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var out *models.Order
	err := s.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return models.ErrNotFound
		}
		out = copyOrder(o)
		return nil
	})
	return out, err
}

func (s *orderStore) FindByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *orderStore) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var out *models.Order
	err := s.run(func(st *state) error {
		id, ok := st.orderNumbers[number]
		if !ok {
			return models.ErrNotFound
		}
		out = copyOrder(st.orders[id])
		return nil
	})
	return out, err
}

func (s *orderStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	var out []models.Order
	err := s.run(func(st *state) error {
		for _, o := range st.orders {
			if o.OwnerID == ownerID {
				out = append(out, *copyOrder(o))
			}
		}
		slices.SortFunc(out, func(a, b models.Order) int {
			if n := b.OrderDate.Compare(a.OrderDate); n != 0 {
				return n
			}
			return int(st.orderSeq[b.ID] - st.orderSeq[a.ID])
		})
		return nil
	})
	return out, err
}

func (s *orderStore) ListByRestaurant(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	err := s.run(func(st *state) error {
		for _, o := range st.orders {
			if o.RestaurantID == restaurantID && (status == "" || o.Status == status) {
				out = append(out, *copyOrder(o))
			}
		}
		slices.SortFunc(out, func(a, b models.Order) int {
			if n := a.OrderDate.Compare(b.OrderDate); n != 0 {
				return n
			}
			return int(st.orderSeq[a.ID] - st.orderSeq[b.ID])
		})
		return nil
	})
	return out, err
}

func (s *orderStore) Update(ctx context.Context, order *models.Order) error {
	return s.run(func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return models.ErrNotFound
		}
		stored.Status = order.Status
		stored.PaymentStatus = order.PaymentStatus
		stored.EstimatedDeliveryTime = order.EstimatedDeliveryTime
		stored.ActualDeliveryTime = order.ActualDeliveryTime
		stored.RefundAmount = order.RefundAmount
		stored.CancellationReason = order.CancellationReason
		stored.UpdatedAt = order.UpdatedAt
		st.orders[order.ID] = stored
		return nil
	})
}

type deliveryStore struct {
	run runner
}

func (s *deliveryStore) Create(ctx context.Context, d *models.Delivery) error {
	return s.run(func(st *state) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := st.byOrder[d.OrderID]; ok {
			return models.ErrConflict
		}
		if _, ok := st.deliveries[d.ID]; ok {
			return models.ErrConflict
		}
		st.deliveries[d.ID] = *d
		st.deliverySeq[d.ID] = st.next()
		st.byOrder[d.OrderID] = d.ID
		return nil
	})
}

func (s *deliveryStore) FindByID(ctx context.Context, id string) (*models.Delivery, error) {
	var out models.Delivery
	err := s.run(func(st *state) error {
		d, ok := st.deliveries[id]
		if !ok {
			return models.ErrNotFound
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *deliveryStore) FindByIDForUpdate(ctx context.Context, id string) (*models.Delivery, error) {
	return s.FindByID(ctx, id)
}

func (s *deliveryStore) FindByOrderID(ctx context.Context, orderID string) (*models.Delivery, error) {
	var out models.Delivery
	err := s.run(func(st *state) error {
		id, ok := st.byOrder[orderID]
		if !ok {
			return models.ErrNotFound
		}
		out = st.deliveries[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *deliveryStore) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Delivery, error) {
	return s.FindByOrderID(ctx, orderID)
}

func (s *deliveryStore) ListByPartner(ctx context.Context, partnerID string) ([]models.Delivery, error) {
	var out []models.Delivery
	err := s.run(func(st *state) error {
		for _, d := range st.deliveries {
			if d.DeliveryPartnerID != nil && *d.DeliveryPartnerID == partnerID {
				out = append(out, d)
			}
		}
		slices.SortFunc(out, func(a, b models.Delivery) int {
			if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
				return n
			}
			return int(st.deliverySeq[b.ID] - st.deliverySeq[a.ID])
		})
		return nil
	})
	return out, err
}

func (s *deliveryStore) Update(ctx context.Context, d *models.Delivery) error {
	return s.run(func(st *state) error {
		stored, ok := st.deliveries[d.ID]
		if !ok {
			return models.ErrNotFound
		}
		updated := *d
		updated.OrderID = stored.OrderID
		updated.CreatedAt = stored.CreatedAt
		st.deliveries[d.ID] = updated
		return nil
	})
}

type statusLogStore struct {
	run runner
}

func (s *statusLogStore) Append(ctx context.Context, entry models.StatusLogEntry) error {
	return s.run(func(st *state) error {
		st.statusLog = append(st.statusLog, entry)
		return nil
	})
}

func (s *statusLogStore) History(ctx context.Context, entityType, entityID string) ([]models.StatusLogEntry, error) {
	var out []models.StatusLogEntry
	err := s.run(func(st *state) error {
		for _, e := range st.statusLog {
			if e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

package postgres

import (
	"context"
	"time"

	"food-delivery/internal/database"
	"food-delivery/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type cartRepo struct {
	q queryer
}

func scanCartLine(row pgx.Row) (*models.CartLine, error) {
	var l models.CartLine
	err := row.Scan(&l.ID, &l.OwnerID, &l.MenuItemRef, &l.Quantity, &l.SpecialInstructions, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *cartRepo) UpsertAdd(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	id := line.ID
	if id == "" {
		id = uuid.NewString()
	}
	return scanCartLine(r.q.QueryRow(ctx, database.UpsertCartLineSQL,
		id, line.OwnerID, line.MenuItemRef, line.Quantity, line.SpecialInstructions))
}

func (r *cartRepo) FindByID(ctx context.Context, id string) (*models.CartLine, error) {
	return scanCartLine(r.q.QueryRow(ctx, database.GetCartLineSQL, id))
}

func (r *cartRepo) list(ctx context.Context, sql, ownerID string) ([]models.CartLine, error) {
	rows, err := r.q.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *l)
	}
	return lines, mapErr(rows.Err())
}

func (r *cartRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.CartLine, error) {
	return r.list(ctx, database.ListCartLinesSQL, ownerID)
}

func (r *cartRepo) ListByOwnerForUpdate(ctx context.Context, ownerID string) ([]models.CartLine, error) {
	return r.list(ctx, database.ListCartLinesForUpdateSQL, ownerID)
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, id string, quantity int) (*models.CartLine, error) {
	return scanCartLine(r.q.QueryRow(ctx, database.UpdateCartLineQuantitySQL, id, quantity))
}

func (r *cartRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, database.DeleteCartLineSQL, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *cartRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := r.q.Exec(ctx, database.DeleteCartLinesByOwnerSQL, ownerID)
	return mapErr(err)
}

func (r *cartRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, database.DeleteCartLinesByIDsSQL, ids)
	return mapErr(err)
}

func (r *cartRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, database.CountCartLinesSQL, ownerID).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

type orderRepo struct {
	q queryer
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	var paymentMethod *string
	if o.PaymentMethod != nil {
		pm := string(*o.PaymentMethod)
		paymentMethod = &pm
	}

	_, err := r.q.Exec(ctx, database.InsertOrderSQL,
		o.ID, o.OrderNumber, o.OwnerID, o.RestaurantID, o.OrderDate, string(o.Status), paymentMethod, string(o.PaymentStatus),
		o.Subtotal, o.TaxAmount, o.DeliveryFee, o.DiscountAmount, o.TotalAmount,
		o.DeliveryAddress.Line1, o.DeliveryAddress.Line2, o.DeliveryAddress.City, o.DeliveryAddress.State, o.DeliveryAddress.PostalCode,
		o.EstimatedDeliveryTime, o.ActualDeliveryTime, o.CouponCode, o.RefundAmount, o.CancellationReason,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}

	for i, item := range o.Items {
		_, err := r.q.Exec(ctx, database.InsertOrderItemSQL,
			item.ID, o.ID, item.MenuItemRef, item.Quantity, item.UnitPrice, item.DiscountPercentage,
			item.DiscountAmount, item.TotalPrice, item.ItemName, item.ItemDescription, item.ItemImageURL,
			string(item.ItemType), item.SpecialInstructions, i,
		)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o             models.Order
		status        string
		paymentMethod *string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.OwnerID, &o.RestaurantID, &o.OrderDate, &status, &paymentMethod, &paymentStatus,
		&o.Subtotal, &o.TaxAmount, &o.DeliveryFee, &o.DiscountAmount, &o.TotalAmount,
		&o.DeliveryAddress.Line1, &o.DeliveryAddress.Line2, &o.DeliveryAddress.City, &o.DeliveryAddress.State, &o.DeliveryAddress.PostalCode,
		&o.EstimatedDeliveryTime, &o.ActualDeliveryTime, &o.CouponCode, &o.RefundAmount, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	if paymentMethod != nil {
		pm := models.PaymentMethod(*paymentMethod)
		o.PaymentMethod = &pm
	}
	return &o, nil
}

func (r *orderRepo) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	rows, err := r.q.Query(ctx, database.ListOrderItemsSQL, ids)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     models.OrderItem
			itemType string
		)
		err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemRef, &item.Quantity, &item.UnitPrice,
			&item.DiscountPercentage, &item.DiscountAmount, &item.TotalPrice, &item.ItemName,
			&item.ItemDescription, &item.ItemImageURL, &itemType, &item.SpecialInstructions)
		if err != nil {
			return mapErr(err)
		}
		item.ItemType = models.ItemType(itemType)
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return mapErr(rows.Err())
}

func (r *orderRepo) findOne(ctx context.Context, sql, arg string) (*models.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.findOne(ctx, database.GetOrderByIDSQL, id)
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.findOne(ctx, database.GetOrderByIDForUpdateSQL, id)
}

func (r *orderRepo) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.findOne(ctx, database.GetOrderByNumberSQL, number)
}

func (r *orderRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	return r.list(ctx, database.ListOrdersByOwnerSQL, ownerID)
}

func (r *orderRepo) ListByRestaurant(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	return r.list(ctx, database.ListOrdersByRestaurantSQL, restaurantID, string(status))
}

// list closes the order rows before loading items so the connection is free
// for the second query.
func (r *orderRepo) list(ctx context.Context, sql string, args ...any) ([]models.Order, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err)
	}

	var ptrs []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}

	orders := make([]models.Order, len(ptrs))
	for i, o := range ptrs {
		orders[i] = *o
	}
	return orders, nil
}

func (r *orderRepo) Update(ctx context.Context, o *models.Order) error {
	tag, err := r.q.Exec(ctx, database.UpdateOrderSQL,
		o.ID, string(o.Status), string(o.PaymentStatus), o.EstimatedDeliveryTime, o.ActualDeliveryTime,
		o.RefundAmount, o.CancellationReason, o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

type deliveryRepo struct {
	q queryer
}

func (r *deliveryRepo) Create(ctx context.Context, d *models.Delivery) error {
	_, err := r.q.Exec(ctx, database.InsertDeliverySQL,
		d.ID, d.OrderID, string(d.Status), d.DeliveryPartnerID, d.AssignedTime, d.PickupTime, d.DeliveryTime,
		d.EstimatedPickupTime, d.EstimatedDeliveryTime, d.DistanceKm, d.DeliveryFee, d.PartnerEarnings,
		d.OtpHash, d.IsOtpVerified, d.OtpFailedAttempts, d.CurrentLatitude, d.CurrentLongitude, d.LastLocationUpdate,
		d.CustomerRating, d.CustomerFeedback, d.DeliveryPhotoURL, d.CancellationReason,
		d.CreatedAt, d.UpdatedAt,
	)
	return mapErr(err)
}

func scanDelivery(row pgx.Row) (*models.Delivery, error) {
	var (
		d      models.Delivery
		status string
	)
	err := row.Scan(
		&d.ID, &d.OrderID, &status, &d.DeliveryPartnerID, &d.AssignedTime, &d.PickupTime, &d.DeliveryTime,
		&d.EstimatedPickupTime, &d.EstimatedDeliveryTime, &d.DistanceKm, &d.DeliveryFee, &d.PartnerEarnings,
		&d.OtpHash, &d.IsOtpVerified, &d.OtpFailedAttempts, &d.CurrentLatitude, &d.CurrentLongitude, &d.LastLocationUpdate,
		&d.CustomerRating, &d.CustomerFeedback, &d.DeliveryPhotoURL, &d.CancellationReason,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	d.Status = models.DeliveryStatus(status)
	return &d, nil
}

func (r *deliveryRepo) FindByID(ctx context.Context, id string) (*models.Delivery, error) {
	return scanDelivery(r.q.QueryRow(ctx, database.GetDeliveryByIDSQL, id))
}

func (r *deliveryRepo) FindByIDForUpdate(ctx context.Context, id string) (*models.Delivery, error) {
	return scanDelivery(r.q.QueryRow(ctx, database.GetDeliveryByIDForUpdateSQL, id))
}

func (r *deliveryRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Delivery, error) {
	return scanDelivery(r.q.QueryRow(ctx, database.GetDeliveryByOrderIDSQL, orderID))
}

func (r *deliveryRepo) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Delivery, error) {
	return scanDelivery(r.q.QueryRow(ctx, database.GetDeliveryByOrderIDForUpdateSQL, orderID))
}

func (r *deliveryRepo) Update(ctx context.Context, d *models.Delivery) error {
	tag, err := r.q.Exec(ctx, database.UpdateDeliverySQL,
		d.ID, string(d.Status), d.DeliveryPartnerID, d.AssignedTime, d.PickupTime, d.DeliveryTime,
		d.EstimatedPickupTime, d.EstimatedDeliveryTime, d.IsOtpVerified, d.CurrentLatitude, d.CurrentLongitude,
		d.LastLocationUpdate, d.CustomerRating, d.CustomerFeedback, d.DeliveryPhotoURL, d.CancellationReason,
		d.UpdatedAt, d.OtpHash, d.OtpFailedAttempts,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *deliveryRepo) ListByPartner(ctx context.Context, partnerID string) ([]models.Delivery, error) {
	rows, err := r.q.Query(ctx, database.ListDeliveriesByPartnerSQL, partnerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, mapErr(rows.Err())
}

type statusLogRepo struct {
	q queryer
}

func (r *statusLogRepo) Append(ctx context.Context, e models.StatusLogEntry) error {
	changedAt := e.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, database.InsertStatusLogSQL,
		e.EntityType, e.EntityID, e.FromStatus, e.ToStatus, e.ChangedBy, e.Notes, changedAt)
	return mapErr(err)
}

func (r *statusLogRepo) History(ctx context.Context, entityType, entityID string) ([]models.StatusLogEntry, error) {
	rows, err := r.q.Query(ctx, database.GetStatusHistorySQL, entityType, entityID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var entries []models.StatusLogEntry
	for rows.Next() {
		var e models.StatusLogEntry
		if err := rows.Scan(&e.EntityType, &e.EntityID, &e.FromStatus, &e.ToStatus, &e.ChangedBy, &e.Notes, &e.ChangedAt); err != nil {
			return nil, mapErr(err)
		}
		entries = append(entries, e)
	}
	return entries, mapErr(rows.Err())
}

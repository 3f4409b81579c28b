package database

// Menu item queries
const (
	GetMenuItemSQL = `
		SELECT id, restaurant_id, name, description, image_url, item_type,
			   price, discount_pct, is_available
		FROM menu_items WHERE id = $1`
)

// Cart queries
const (
	cartColumns = `id, owner_id, menu_item_ref, quantity, special_instructions, created_at, updated_at`

	UpsertCartLineSQL = `
		INSERT INTO cart_lines (id, owner_id, menu_item_ref, quantity, special_instructions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (owner_id, menu_item_ref) DO UPDATE SET
			quantity = cart_lines.quantity + EXCLUDED.quantity,
			special_instructions = EXCLUDED.special_instructions,
			updated_at = NOW()
		RETURNING ` + cartColumns

	GetCartLineSQL = `SELECT ` + cartColumns + ` FROM cart_lines WHERE id = $1`

	ListCartLinesSQL = `
		SELECT ` + cartColumns + ` FROM cart_lines
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`

	ListCartLinesForUpdateSQL = `
		SELECT ` + cartColumns + ` FROM cart_lines
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		FOR UPDATE`

	UpdateCartLineQuantitySQL = `
		UPDATE cart_lines SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + cartColumns

	DeleteCartLineSQL = `DELETE FROM cart_lines WHERE id = $1`

	DeleteCartLinesByOwnerSQL = `DELETE FROM cart_lines WHERE owner_id = $1`

	DeleteCartLinesByIDsSQL = `DELETE FROM cart_lines WHERE id = ANY($1)`

	CountCartLinesSQL = `SELECT COUNT(*) FROM cart_lines WHERE owner_id = $1`
)

// Order queries
const (
	orderColumns = `id, order_number, owner_id, restaurant_id, order_date, status, payment_method, payment_status,
			   subtotal, tax_amount, delivery_fee, discount_amount, total_amount,
			   address_line1, address_line2, address_city, address_state, address_postal_code,
			   estimated_delivery_time, actual_delivery_time, coupon_code, refund_amount, cancellation_reason,
			   created_at, updated_at`

	InsertOrderSQL = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
				$19, $20, $21, $22, $23, $24, $25)`

	InsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, menu_item_ref, quantity, unit_price, discount_percentage,
			discount_amount, total_price, item_name, item_description, item_image_url, item_type,
			special_instructions, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	GetOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	GetOrderByIDForUpdateSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	GetOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	ListOrdersByOwnerSQL = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE owner_id = $1
		ORDER BY order_date DESC, id DESC`

	ListOrdersByRestaurantSQL = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE restaurant_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY order_date ASC, id ASC`

	ListOrderItemsSQL = `
		SELECT id, order_id, menu_item_ref, quantity, unit_price, discount_percentage, discount_amount,
			   total_price, item_name, item_description, item_image_url, item_type, special_instructions
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	UpdateOrderSQL = `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			estimated_delivery_time = $4,
			actual_delivery_time = $5,
			refund_amount = $6,
			cancellation_reason = $7,
			updated_at = $8
		WHERE id = $1`
)

// Delivery queries
const (
	deliveryColumns = `id, order_id, status, delivery_partner_id, assigned_time, pickup_time, delivery_time,
			   estimated_pickup_time, estimated_delivery_time, distance_km, delivery_fee, partner_earnings,
			   otp_hash, is_otp_verified, otp_failed_attempts, current_latitude, current_longitude, last_location_update,
			   customer_rating, customer_feedback, delivery_photo_url, cancellation_reason,
			   created_at, updated_at`

	InsertDeliverySQL = `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
				$19, $20, $21, $22, $23, $24)`

	GetDeliveryByIDSQL = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	GetDeliveryByIDForUpdateSQL = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1 FOR UPDATE`

	GetDeliveryByOrderIDSQL = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1`

	GetDeliveryByOrderIDForUpdateSQL = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1 FOR UPDATE`

	ListDeliveriesByPartnerSQL = `
		SELECT ` + deliveryColumns + ` FROM deliveries
		WHERE delivery_partner_id = $1
		ORDER BY created_at DESC, id DESC`

	UpdateDeliverySQL = `
		UPDATE deliveries SET
			status = $2,
			delivery_partner_id = $3,
			assigned_time = $4,
			pickup_time = $5,
			delivery_time = $6,
			estimated_pickup_time = $7,
			estimated_delivery_time = $8,
			is_otp_verified = $9,
			current_latitude = $10,
			current_longitude = $11,
			last_location_update = $12,
			customer_rating = $13,
			customer_feedback = $14,
			delivery_photo_url = $15,
			cancellation_reason = $16,
			updated_at = $17,
			otp_hash = $18,
			otp_failed_attempts = $19
		WHERE id = $1`
)

// Status log queries
const (
	InsertStatusLogSQL = `
		INSERT INTO status_log (entity_type, entity_id, from_status, to_status, changed_by, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	GetStatusHistorySQL = `
		SELECT entity_type, entity_id, from_status, to_status, changed_by, notes, changed_at
		FROM status_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY changed_at ASC, id ASC`
)

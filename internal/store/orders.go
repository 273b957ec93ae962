package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// InsertOrder writes the order and its items inside the caller's transaction.
// The order must already carry its ID, totals, and item IDs; amounts are base
// currency. Timestamps are assigned by the database and written back onto the
// model.
func InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_id, customer_id, customer_email, shipping_address, notes,
		                     subtotal, shipping, tax, discount, total,
		                     coupon_id, coupon_code, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.OrderID, order.CustomerID, order.CustomerEmail, order.ShippingAddress, order.Notes,
		order.Subtotal, order.Shipping, order.Tax, order.Discount, order.Total,
		order.CouponID, order.CouponCode, order.Status).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_item_id, order_id, sku, quantity, price_at_purchase, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING created_at`,
			item.OrderItemID, order.OrderID, item.SKU, item.Quantity, item.PriceAtPurchase).Scan(&item.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, orderID string) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT order_id, customer_id, customer_email, shipping_address, notes,
		       subtotal, shipping, tax, discount, total,
		       COALESCE(coupon_id, ''), COALESCE(coupon_code, ''), status, created_at, updated_at
		FROM orders
		WHERE order_id = $1`

	err := db.QueryRowContext(ctx, query, orderID).Scan(
		&order.OrderID,
		&order.CustomerID,
		&order.CustomerEmail,
		&order.ShippingAddress,
		&order.Notes,
		&order.Subtotal,
		&order.Shipping,
		&order.Tax,
		&order.Discount,
		&order.Total,
		&order.CouponID,
		&order.CouponCode,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT order_item_id, order_id, sku, quantity, price_at_purchase, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY sku`

	rows, err := db.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.OrderItemID,
			&item.OrderID,
			&item.SKU,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// TransitionOrderStatus moves an order to a new status, enforcing the status
// machine under a row lock. Returns the updated order.
func TransitionOrderStatus(ctx context.Context, db *sql.DB, orderID, newStatus string) (*models.Order, error) {
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !models.CanTransition(current, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE order_id = $2`,
			newStatus, orderID)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetOrder(ctx, db, orderID)
}

// ListOrdersCursor pages a customer's orders newest first using a keyset
// cursor over (created_at, order_id).
func ListOrdersCursor(ctx context.Context, db *sql.DB, customerID, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT order_id, customer_id, customer_email, subtotal, shipping, tax, discount, total,
		       COALESCE(coupon_code, ''), status, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		  AND (created_at, order_id) < ($2, $3)
		ORDER BY created_at DESC, order_id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.OrderID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.OrderID,
			&order.CustomerID,
			&order.CustomerEmail,
			&order.Subtotal,
			&order.Shipping,
			&order.Tax,
			&order.Discount,
			&order.Total,
			&order.CouponCode,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, OrderID: last.OrderID})
	}

	return &CursorPage{Items: orders, NextCursor: nextCursor, HasMore: hasMore}, nil
}

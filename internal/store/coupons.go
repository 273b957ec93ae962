package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

type CreateCouponRequest struct {
	Code               string
	DiscountPercentage decimal.Decimal
	MinOrderValue      decimal.Decimal
	MaxDiscount        decimal.Decimal
	HasMaxDiscount     bool
	ValidFrom          time.Time
	ValidUntil         time.Time
	UsageLimit         int
	CategoryIDs        []string
	CustomerIDs        []string
}

func CreateCoupon(ctx context.Context, db *sql.DB, req CreateCouponRequest) (*models.Coupon, error) {
	maxDiscount := decimal.NullDecimal{Decimal: req.MaxDiscount, Valid: req.HasMaxDiscount}

	query := `
		INSERT INTO coupons (coupon_id, code, discount_percentage, min_order_value, max_discount,
		                     valid_from, valid_until, usage_limit, usage_count, is_active,
		                     category_ids, customer_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, TRUE, $9, $10, NOW())
		RETURNING coupon_id, created_at`

	coupon := &models.Coupon{
		Code:               req.Code,
		DiscountPercentage: req.DiscountPercentage,
		MinOrderValue:      req.MinOrderValue,
		MaxDiscount:        req.MaxDiscount,
		HasMaxDiscount:     req.HasMaxDiscount,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		UsageLimit:         req.UsageLimit,
		IsActive:           true,
		CategoryIDs:        req.CategoryIDs,
		CustomerIDs:        req.CustomerIDs,
	}

	err := db.QueryRowContext(ctx, query,
		models.NewCouponID(), req.Code, req.DiscountPercentage, req.MinOrderValue, maxDiscount,
		req.ValidFrom, req.ValidUntil, req.UsageLimit,
		pq.Array(req.CategoryIDs), pq.Array(req.CustomerIDs)).Scan(
		&coupon.CouponID,
		&coupon.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	return coupon, nil
}

// GetCouponByCode resolves a coupon code case-insensitively.
func GetCouponByCode(ctx context.Context, db *sql.DB, code string) (*models.Coupon, error) {
	coupon := &models.Coupon{}
	var maxDiscount decimal.NullDecimal

	query := `
		SELECT coupon_id, code, discount_percentage, min_order_value, max_discount,
		       valid_from, valid_until, usage_limit, usage_count, is_active,
		       category_ids, customer_ids, created_at
		FROM coupons
		WHERE UPPER(code) = UPPER($1)`

	err := db.QueryRowContext(ctx, query, code).Scan(
		&coupon.CouponID,
		&coupon.Code,
		&coupon.DiscountPercentage,
		&coupon.MinOrderValue,
		&maxDiscount,
		&coupon.ValidFrom,
		&coupon.ValidUntil,
		&coupon.UsageLimit,
		&coupon.UsageCount,
		&coupon.IsActive,
		pq.Array(&coupon.CategoryIDs),
		pq.Array(&coupon.CustomerIDs),
		&coupon.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	coupon.HasMaxDiscount = maxDiscount.Valid
	if maxDiscount.Valid {
		coupon.MaxDiscount = maxDiscount.Decimal
	}

	return coupon, nil
}

// CouponUsed reports whether the customer has ever redeemed this coupon.
func CouponUsed(ctx context.Context, db *sql.DB, couponID, customerID string) (bool, error) {
	var used bool

	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND customer_id = $2)`,
		couponID, customerID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check coupon usage: %w", err)
	}

	return used, nil
}

// RecordCouponUsage inserts the usage row and bumps the coupon's usage count
// inside the caller's transaction. The guarded UPDATE fails when a concurrent
// checkout exhausted the usage limit after evaluation.
func RecordCouponUsage(ctx context.Context, tx *sql.Tx, usage models.CouponUsage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO coupon_usages (coupon_id, customer_id, order_id, discount, used_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		usage.CouponID, usage.CustomerID, usage.OrderID, usage.Discount)
	if err != nil {
		return fmt.Errorf("record coupon usage: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE coupons
		 SET usage_count = usage_count + 1
		 WHERE coupon_id = $1
		   AND (usage_limit = 0 OR usage_count < usage_limit)`,
		usage.CouponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCouponExhausted
	}

	return nil
}

// InsertCoupon writes a fully formed coupon inside the caller's transaction.
// Used for reward coupons minted during checkout.
func InsertCoupon(ctx context.Context, tx *sql.Tx, coupon *models.Coupon) error {
	maxDiscount := decimal.NullDecimal{Decimal: coupon.MaxDiscount, Valid: coupon.HasMaxDiscount}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO coupons (coupon_id, code, discount_percentage, min_order_value, max_discount,
		                      valid_from, valid_until, usage_limit, usage_count, is_active,
		                      category_ids, customer_ids, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		coupon.CouponID, coupon.Code, coupon.DiscountPercentage, coupon.MinOrderValue, maxDiscount,
		coupon.ValidFrom, coupon.ValidUntil, coupon.UsageLimit, coupon.UsageCount, coupon.IsActive,
		pq.Array(coupon.CategoryIDs), pq.Array(coupon.CustomerIDs))
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

// Package checkout turns a session cart into a committed order: pricing,
// coupon evaluation, stock reservation, persistence, and reward issuance.
// Everything that mutates durable state runs in one transaction.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/config"
	"github.com/auroramart/storefront/internal/coupon"
	"github.com/auroramart/storefront/internal/currency"
	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
	"github.com/auroramart/storefront/internal/notify"
	"github.com/auroramart/storefront/internal/recommend"
	"github.com/auroramart/storefront/internal/store"
)

var ErrEmptyCart = errors.New("cart is empty")

// isDuplicateCouponUsage reports whether a checkout transaction lost the race
// for a coupon's one-use-per-customer row.
func isDuplicateCouponUsage(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Table == "coupon_usages"
}

type Engine struct {
	DB          *sql.DB
	Carts       *cart.Store
	Converter   *currency.Converter
	Coupons     *coupon.Engine
	Recommender recommend.Recommender
	Notifier    notify.Notifier
	Pricing     config.PricingConfig

	// now is overridable for tests.
	now func() time.Time
}

func NewEngine(db *sql.DB, carts *cart.Store, converter *currency.Converter, recommender recommend.Recommender, notifier notify.Notifier, pricing config.PricingConfig) *Engine {
	deps := dbDeps{db: db}
	return &Engine{
		DB:        db,
		Carts:     carts,
		Converter: converter,
		Coupons: &coupon.Engine{
			Coupons:    deps,
			Catalog:    deps,
			Categories: deps,
			Usage:      deps,
		},
		Recommender: recommender,
		Notifier:    notifier,
		Pricing:     pricing,
		now:         time.Now,
	}
}

// dbDeps binds the coupon engine's lookups to the database.
type dbDeps struct {
	db *sql.DB
}

func (d dbDeps) CouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return store.GetCouponByCode(ctx, d.db, code)
}

func (d dbDeps) ProductCategory(ctx context.Context, sku string) (string, error) {
	return store.ProductCategory(ctx, d.db, sku)
}

func (d dbDeps) ParentCategory(ctx context.Context, categoryID string) (string, error) {
	return store.ParentCategory(ctx, d.db, categoryID)
}

func (d dbDeps) CouponUsed(ctx context.Context, couponID, customerID string) (bool, error) {
	return store.CouponUsed(ctx, d.db, couponID, customerID)
}

// Totals is the priced breakdown of an order in one currency. Amounts are
// rounded to 2 decimal places.
type Totals struct {
	Currency string          `json:"currency"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Result is a committed checkout. Display echoes the base totals converted to
// the requested currency for the confirmation view only.
type Result struct {
	Order   *models.Order
	Reward  *models.Coupon
	Display Totals
}

// Price computes the base-currency totals for a cart before any discount.
// Shipping applies only to non-empty orders; tax is a flat percentage of the
// subtotal.
func (e *Engine) Price(c *cart.Cart) Totals {
	subtotal := c.Subtotal()

	shipping := decimal.Zero
	if subtotal.GreaterThan(decimal.Zero) {
		shipping = e.Pricing.ShippingFlatFee
	}
	tax := subtotal.Mul(e.Pricing.TaxPercent).Div(decimal.NewFromInt(100)).Round(2)

	return Totals{
		Currency: currency.Base,
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: decimal.Zero,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// Preview evaluates a coupon against the session's current cart without
// committing anything.
func (e *Engine) Preview(ctx context.Context, sessionID, customerID, couponCode string) (Totals, error) {
	c, err := e.Carts.Load(ctx, sessionID)
	if err != nil {
		return Totals{}, err
	}
	if c.IsEmpty() {
		return Totals{}, ErrEmptyCart
	}

	totals := e.Price(c)
	if couponCode != "" {
		res, err := e.Coupons.Evaluate(ctx, couponCode, customerID, c.Items(), totals.Subtotal)
		if err != nil {
			return Totals{}, err
		}
		totals.Discount = res.Discount
		totals.Total = totals.Total.Sub(res.Discount)
	}
	return totals, nil
}

// Submit runs one checkout attempt to completion: validate, price, evaluate
// the coupon, then atomically reserve stock, persist the order aggregate,
// record coupon usage, and issue the reward. Any failure aborts the whole
// attempt with the cart intact. Each call creates a new order; duplicate
// submissions are not deduplicated.
func (e *Engine) Submit(ctx context.Context, req Request) (*Result, error) {
	c, err := e.Carts.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if err := req.validate(e.now()); err != nil {
		return nil, err
	}

	customer, err := store.GetCustomer(ctx, e.DB, req.CustomerID)
	if err != nil {
		return nil, err
	}

	totals := e.Price(c)
	lines := c.Items()

	var applied *coupon.Result
	if req.CouponCode != "" {
		applied, err = e.Coupons.Evaluate(ctx, req.CouponCode, customer.CustomerID, lines, totals.Subtotal)
		if err != nil {
			return nil, err
		}
		totals.Discount = applied.Discount
		totals.Total = totals.Total.Sub(applied.Discount)
	}

	// Reward category choice is read-only and can fail soft, so it stays
	// outside the transaction.
	rewardCategoryID := e.chooseRewardCategory(ctx, lines, customer)

	order := &models.Order{
		OrderID:         models.NewOrderID(),
		CustomerID:      customer.CustomerID,
		CustomerEmail:   req.Email,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Status:          models.OrderStatusPending,
	}
	if applied != nil {
		order.CouponID = applied.Coupon.CouponID
		order.CouponCode = applied.Coupon.Code
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			OrderItemID:     models.NewOrderItemID(),
			OrderID:         order.OrderID,
			SKU:             line.SKU,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
		})
	}

	reward := buildRewardCoupon(customer.CustomerID, rewardCategoryID, e.now())

	err = database.WithRetry(ctx, e.DB, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		// Stock first: a failed persist must not leave stock decremented.
		for _, line := range lines {
			if _, err := store.LockProduct(ctx, tx, line.SKU); err != nil {
				return err
			}
			if err := store.DecrementStock(ctx, tx, line.SKU, line.Quantity); err != nil {
				return err
			}
		}

		if err := store.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		if applied != nil {
			usage := models.CouponUsage{
				CouponID:   applied.Coupon.CouponID,
				CustomerID: customer.CustomerID,
				OrderID:    order.OrderID,
				Discount:   applied.Discount,
			}
			if err := store.RecordCouponUsage(ctx, tx, usage); err != nil {
				return err
			}
		}

		return issueReward(ctx, tx, reward)
	})
	if err != nil {
		// A simultaneous submission by the same customer can win the
		// (coupon, customer) usage row between evaluation and commit.
		if isDuplicateCouponUsage(err) {
			return nil, coupon.ErrAlreadyUsed
		}
		return nil, err
	}

	if err := e.Carts.Delete(ctx, req.SessionID); err != nil {
		// The order is committed; a stale cart is the lesser failure.
		log.Printf("checkout: clear cart for session %s: %v", req.SessionID, err)
	}

	e.Notifier.OrderPlaced(order)
	e.Notifier.RewardIssued(customer.CustomerID, reward)

	return &Result{
		Order:   order,
		Reward:  reward,
		Display: e.displayTotals(totals, req.DisplayCurrency),
	}, nil
}

// displayTotals converts base totals to the requested display currency for
// the response echo. Persisted amounts stay base currency.
func (e *Engine) displayTotals(base Totals, code string) Totals {
	if code == "" || code == currency.Base {
		return base
	}
	return Totals{
		Currency: code,
		Subtotal: e.Converter.ToDisplay(base.Subtotal, code),
		Shipping: e.Converter.ToDisplay(base.Shipping, code),
		Tax:      e.Converter.ToDisplay(base.Tax, code),
		Discount: e.Converter.ToDisplay(base.Discount, code),
		Total:    e.Converter.ToDisplay(base.Total, code),
	}
}

// TransitionStatus moves an order between lifecycle states and emits the
// change notification. Notification failure never rolls back the transition.
func (e *Engine) TransitionStatus(ctx context.Context, orderID, newStatus string) (*models.Order, error) {
	before, err := store.GetOrder(ctx, e.DB, orderID)
	if err != nil {
		return nil, err
	}

	order, err := store.TransitionOrderStatus(ctx, e.DB, orderID, newStatus)
	if err != nil {
		return nil, fmt.Errorf("transition order %s: %w", orderID, err)
	}

	e.Notifier.OrderStatusChanged(order, before.Status)
	return order, nil
}

// Package coupon decides whether a coupon applies to a priced cart and how
// much it discounts, in base currency. Evaluation never mutates anything;
// usage recording belongs to the checkout commit.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

var (
	ErrInvalidCode  = errors.New("coupon code not recognized")
	ErrNotValid     = errors.New("coupon is not currently valid")
	ErrNotEligible  = errors.New("coupon is not available for this customer")
	ErrAlreadyUsed  = errors.New("coupon has already been used")
	ErrDoesNotApply = errors.New("coupon does not apply to this order")
)

// IsCouponError reports whether err belongs to the coupon taxonomy. These are
// the recoverable errors surfaced verbatim to the customer.
func IsCouponError(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrNotValid) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrDoesNotApply)
}

// CouponSource resolves a code case-insensitively.
type CouponSource interface {
	CouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// ProductCatalog resolves a SKU to its category ID; empty string means the
// product is uncategorized.
type ProductCatalog interface {
	ProductCategory(ctx context.Context, sku string) (string, error)
}

// CategoryTree resolves a category to its parent; empty string means root.
type CategoryTree interface {
	ParentCategory(ctx context.Context, categoryID string) (string, error)
}

// UsageChecker reports whether a customer has ever used a coupon, on any
// order.
type UsageChecker interface {
	CouponUsed(ctx context.Context, couponID, customerID string) (bool, error)
}

// Result is a successful evaluation: the coupon and the discount it grants
// against the eligible portion of the cart.
type Result struct {
	Coupon           *models.Coupon
	Discount         decimal.Decimal
	EligibleSubtotal decimal.Decimal
}

type Engine struct {
	Coupons    CouponSource
	Catalog    ProductCatalog
	Categories CategoryTree
	Usage      UsageChecker

	// Now is overridable for tests; validity windows compare dates only.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Evaluate runs the full eligibility chain for a coupon code against a priced
// cart, short-circuiting on the first failed rule. Rules run in a fixed
// order: code lookup, active/validity window, usage limit, customer
// assignment, prior use, category-scoped eligible subtotal, minimum order
// value; then the discount is computed and capped.
func (e *Engine) Evaluate(ctx context.Context, code, customerID string, lines []cart.Line, subtotal decimal.Decimal) (*Result, error) {
	cpn, err := e.Coupons.CouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrCouponNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("lookup coupon: %w", err)
	}

	today := dateOnly(e.now())
	if !cpn.IsActive || today.Before(dateOnly(cpn.ValidFrom)) || today.After(dateOnly(cpn.ValidUntil)) {
		return nil, ErrNotValid
	}
	if cpn.UsageLimit > 0 && cpn.UsageCount >= cpn.UsageLimit {
		return nil, ErrNotValid
	}

	if len(cpn.CustomerIDs) > 0 && !contains(cpn.CustomerIDs, customerID) {
		return nil, ErrNotEligible
	}

	used, err := e.Usage.CouponUsed(ctx, cpn.CouponID, customerID)
	if err != nil {
		return nil, fmt.Errorf("check coupon usage: %w", err)
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	eligible, err := e.eligibleSubtotal(ctx, cpn, lines, subtotal)
	if err != nil {
		return nil, err
	}
	if eligible.IsZero() {
		return nil, ErrDoesNotApply
	}
	if eligible.LessThan(cpn.MinOrderValue) {
		return nil, ErrDoesNotApply
	}

	discount := eligible.Mul(cpn.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
	if cpn.HasMaxDiscount && discount.GreaterThan(cpn.MaxDiscount) {
		discount = cpn.MaxDiscount
	}
	if discount.GreaterThan(eligible) {
		discount = eligible
	}

	return &Result{Coupon: cpn, Discount: discount, EligibleSubtotal: eligible}, nil
}

// eligibleSubtotal sums the line totals the coupon's category restriction
// permits. A line counts when its product's category, or that category's
// parent, is in the coupon's set. Lines whose product has vanished from the
// catalog contribute nothing; checkout will reject them later.
func (e *Engine) eligibleSubtotal(ctx context.Context, cpn *models.Coupon, lines []cart.Line, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if len(cpn.CategoryIDs) == 0 {
		return subtotal, nil
	}

	eligible := decimal.Zero
	for _, line := range lines {
		categoryID, err := e.Catalog.ProductCategory(ctx, line.SKU)
		if err != nil {
			if errors.Is(err, database.ErrProductNotFound) {
				continue
			}
			return decimal.Zero, fmt.Errorf("product category for %s: %w", line.SKU, err)
		}
		if categoryID == "" {
			continue
		}

		if contains(cpn.CategoryIDs, categoryID) {
			eligible = eligible.Add(line.LineTotal())
			continue
		}

		parentID, err := e.Categories.ParentCategory(ctx, categoryID)
		if err != nil {
			if errors.Is(err, database.ErrCategoryNotFound) {
				continue
			}
			return decimal.Zero, fmt.Errorf("parent category for %s: %w", categoryID, err)
		}
		if parentID != "" && contains(cpn.CategoryIDs, parentID) {
			eligible = eligible.Add(line.LineTotal())
		}
	}
	return eligible, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

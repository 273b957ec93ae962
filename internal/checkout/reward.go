package checkout

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
	"github.com/auroramart/storefront/internal/store"
)

// Reward coupon terms: single use, 5% up to 25.00 SGD, on orders of at least
// 20.00 SGD, for 90 days.
var (
	rewardPercentage = decimal.NewFromInt(5)
	rewardMaxAmount  = decimal.RequireFromString("25.00")
	rewardMinOrder   = decimal.RequireFromString("20.00")
)

const rewardValidityDays = 90

// categoryChooser proposes a category to scope a reward coupon to. Empty
// string with nil error means no proposal; the next chooser runs.
type categoryChooser func(ctx context.Context, lines []cart.Line, customer *models.Customer) (string, error)

// chooseRewardCategory tries each chooser in order and takes the first
// proposal. Chooser failures are logged and skipped so reward issuance never
// blocks a checkout. Empty result means the reward stays unscoped.
func (e *Engine) chooseRewardCategory(ctx context.Context, lines []cart.Line, customer *models.Customer) string {
	choosers := []categoryChooser{
		e.recommendedCategory,
		e.leastPurchasedCategory,
		e.preferredCategory,
	}

	for _, choose := range choosers {
		categoryID, err := choose(ctx, lines, customer)
		if err != nil {
			log.Printf("checkout: reward category chooser failed: %v", err)
			continue
		}
		if categoryID != "" {
			return categoryID
		}
	}
	return ""
}

// recommendedCategory takes the category of the top-ranked recommendation for
// the purchased SKUs.
func (e *Engine) recommendedCategory(ctx context.Context, lines []cart.Line, _ *models.Customer) (string, error) {
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		skus = append(skus, line.SKU)
	}

	ranked, err := e.Recommender.Recommend(ctx, skus, 1)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return "", nil
	}

	categoryID, err := store.ProductCategory(ctx, e.DB, ranked[0])
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return "", nil
		}
		return "", err
	}
	return categoryID, nil
}

// leastPurchasedCategory picks the category with the lowest total quantity in
// this order, nudging the customer toward what they bought least of. Ties
// break alphabetically.
func (e *Engine) leastPurchasedCategory(ctx context.Context, lines []cart.Line, _ *models.Customer) (string, error) {
	quantities := make(map[string]int)
	for _, line := range lines {
		categoryID, err := store.ProductCategory(ctx, e.DB, line.SKU)
		if err != nil {
			if errors.Is(err, database.ErrProductNotFound) {
				continue
			}
			return "", err
		}
		if categoryID == "" {
			continue
		}
		quantities[categoryID] += line.Quantity
	}

	var chosen string
	for categoryID, qty := range quantities {
		if chosen == "" || qty < quantities[chosen] || (qty == quantities[chosen] && categoryID < chosen) {
			chosen = categoryID
		}
	}
	return chosen, nil
}

// preferredCategory resolves the customer's preferred category name to an ID.
// The default preference "General" is not a real category and yields no
// proposal.
func (e *Engine) preferredCategory(ctx context.Context, _ []cart.Line, customer *models.Customer) (string, error) {
	if customer.PreferredCategory == "" || customer.PreferredCategory == "General" {
		return "", nil
	}

	category, err := store.CategoryByName(ctx, e.DB, customer.PreferredCategory)
	if err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			return "", nil
		}
		return "", err
	}
	return category.CategoryID, nil
}

// buildRewardCoupon mints the coupon record issued after every successful
// checkout. A non-empty categoryID scopes it; otherwise it applies storewide.
func buildRewardCoupon(customerID, categoryID string, now time.Time) *models.Coupon {
	coupon := &models.Coupon{
		CouponID:           models.NewCouponID(),
		Code:               models.NewRewardCode(),
		DiscountPercentage: rewardPercentage,
		MinOrderValue:      rewardMinOrder,
		MaxDiscount:        rewardMaxAmount,
		HasMaxDiscount:     true,
		ValidFrom:          now,
		ValidUntil:         now.AddDate(0, 0, rewardValidityDays),
		UsageLimit:         1,
		IsActive:           true,
		CustomerIDs:        []string{customerID},
	}
	if categoryID != "" {
		coupon.CategoryIDs = []string{categoryID}
	}
	return coupon
}

// issueReward writes the reward coupon inside the checkout transaction so a
// rolled-back order never leaves a stray reward behind.
func issueReward(ctx context.Context, tx *sql.Tx, coupon *models.Coupon) error {
	return store.InsertCoupon(ctx, tx, coupon)
}

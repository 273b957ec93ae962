package checkout

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/config"
	"github.com/auroramart/storefront/internal/currency"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testEngine() *Engine {
	return &Engine{
		Converter: currency.NewConverter(currency.DefaultRates()),
		Pricing: config.PricingConfig{
			ShippingFlatFee: dec("5.00"),
			TaxPercent:      dec("8"),
		},
		now: func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) },
	}
}

func TestPrice(t *testing.T) {
	e := testEngine()

	c := cart.New()
	_ = c.Add("SKU-1", 2, dec("40.00"), "A", "")
	_ = c.Add("SKU-2", 1, dec("20.00"), "B", "")

	totals := e.Price(c)
	if !totals.Subtotal.Equal(dec("100.00")) {
		t.Errorf("subtotal = %s, want 100.00", totals.Subtotal)
	}
	if !totals.Shipping.Equal(dec("5.00")) {
		t.Errorf("shipping = %s, want 5.00", totals.Shipping)
	}
	if !totals.Tax.Equal(dec("8.00")) {
		t.Errorf("tax = %s, want 8.00", totals.Tax)
	}
	if !totals.Total.Equal(dec("113.00")) {
		t.Errorf("total = %s, want 113.00", totals.Total)
	}
}

func TestPriceEmptyCartHasNoShipping(t *testing.T) {
	e := testEngine()

	totals := e.Price(cart.New())
	if !totals.Shipping.IsZero() {
		t.Errorf("shipping on empty cart = %s, want 0", totals.Shipping)
	}
	if !totals.Total.IsZero() {
		t.Errorf("total on empty cart = %s, want 0", totals.Total)
	}
}

func TestPriceTaxRounds(t *testing.T) {
	e := testEngine()

	c := cart.New()
	_ = c.Add("SKU-1", 1, dec("10.55"), "A", "")

	// 8% of 10.55 = 0.844 -> 0.84
	totals := e.Price(c)
	if !totals.Tax.Equal(dec("0.84")) {
		t.Errorf("tax = %s, want 0.84", totals.Tax)
	}
}

func TestDisplayTotalsConvertsEveryAmount(t *testing.T) {
	e := testEngine()

	base := Totals{
		Currency: currency.Base,
		Subtotal: dec("100.00"),
		Shipping: dec("5.00"),
		Tax:      dec("8.00"),
		Discount: dec("20.00"),
		Total:    dec("93.00"),
	}

	display := e.displayTotals(base, "USD")
	if display.Currency != "USD" {
		t.Errorf("currency = %s, want USD", display.Currency)
	}
	if !display.Subtotal.Equal(dec("74.00")) {
		t.Errorf("subtotal = %s, want 74.00", display.Subtotal)
	}
	if !display.Total.Equal(dec("68.82")) {
		t.Errorf("total = %s, want 68.82", display.Total)
	}

	same := e.displayTotals(base, "")
	if !same.Total.Equal(base.Total) || same.Currency != currency.Base {
		t.Error("empty display currency should echo base totals")
	}
}

func TestBuildRewardCoupon(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	reward := buildRewardCoupon("CUST-1", "CAT-BOOKS", now)

	if !reward.DiscountPercentage.Equal(dec("5")) {
		t.Errorf("percentage = %s, want 5", reward.DiscountPercentage)
	}
	if !reward.HasMaxDiscount || !reward.MaxDiscount.Equal(dec("25.00")) {
		t.Errorf("max discount = %s, want 25.00", reward.MaxDiscount)
	}
	if !reward.MinOrderValue.Equal(dec("20.00")) {
		t.Errorf("min order = %s, want 20.00", reward.MinOrderValue)
	}
	if reward.UsageLimit != 1 {
		t.Errorf("usage limit = %d, want 1", reward.UsageLimit)
	}
	if got, want := reward.ValidUntil, now.AddDate(0, 0, 90); !got.Equal(want) {
		t.Errorf("valid until = %s, want %s", got, want)
	}
	if len(reward.CustomerIDs) != 1 || reward.CustomerIDs[0] != "CUST-1" {
		t.Errorf("customer ids = %v, want [CUST-1]", reward.CustomerIDs)
	}
	if len(reward.CategoryIDs) != 1 || reward.CategoryIDs[0] != "CAT-BOOKS" {
		t.Errorf("category ids = %v, want [CAT-BOOKS]", reward.CategoryIDs)
	}

	unscoped := buildRewardCoupon("CUST-1", "", now)
	if len(unscoped.CategoryIDs) != 0 {
		t.Errorf("unscoped reward should have no category ids, got %v", unscoped.CategoryIDs)
	}
	if unscoped.Code == reward.Code {
		t.Error("reward codes should be unique")
	}
}

func TestDuplicateCouponUsageDetection(t *testing.T) {
	dup := fmt.Errorf("record coupon usage: %w", &pq.Error{Code: "23505", Table: "coupon_usages"})
	if !isDuplicateCouponUsage(dup) {
		t.Error("unique violation on coupon_usages should be recognized")
	}

	for name, err := range map[string]error{
		"other table":    &pq.Error{Code: "23505", Table: "orders"},
		"other code":     &pq.Error{Code: "40001", Table: "coupon_usages"},
		"plain error":    errors.New("boom"),
		"no error class": nil,
	} {
		if isDuplicateCouponUsage(err) {
			t.Errorf("%s should not be treated as a duplicate usage", name)
		}
	}
}

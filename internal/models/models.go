package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	CustomerID        string          `json:"customer_id"`
	Username          string          `json:"username"`
	Email             string          `json:"email"`
	Age               int             `json:"age,omitempty"`
	MonthlyIncomeSGD  decimal.Decimal `json:"monthly_income_sgd,omitempty"`
	PreferredCategory string          `json:"preferred_category"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Category struct {
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Product struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Rating          float64         `json:"rating"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
	ReorderQuantity int             `json:"reorder_quantity"`
	ImageURL        string          `json:"image_url,omitempty"`
	CategoryID      string          `json:"category_id,omitempty"`
	SubcategoryID   string          `json:"subcategory_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Order struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	CustomerEmail   string          `json:"customer_email"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CouponID        string          `json:"coupon_id,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	OrderItemID     string          `json:"order_item_id"`
	OrderID         string          `json:"order_id"`
	SKU             string          `json:"sku"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Coupon money fields are base currency (SGD). HasMaxDiscount false means the
// percentage discount is uncapped; UsageLimit of zero means unlimited uses.
type Coupon struct {
	CouponID           string          `json:"coupon_id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	MinOrderValue      decimal.Decimal `json:"min_order_value"`
	MaxDiscount        decimal.Decimal `json:"max_discount,omitempty"`
	HasMaxDiscount     bool            `json:"has_max_discount"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidUntil         time.Time       `json:"valid_until"`
	UsageLimit         int             `json:"usage_limit"`
	UsageCount         int             `json:"usage_count"`
	IsActive           bool            `json:"is_active"`
	CategoryIDs        []string        `json:"category_ids,omitempty"`
	CustomerIDs        []string        `json:"customer_ids,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type CouponUsage struct {
	CouponID   string          `json:"coupon_id"`
	CustomerID string          `json:"customer_id"`
	OrderID    string          `json:"order_id"`
	Discount   decimal.Decimal `json:"discount"`
	UsedAt     time.Time       `json:"used_at"`
}

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// CanTransition reports whether an order status change is legal. PENDING may
// move to COMPLETED or CANCELLED; both of those are terminal.
func CanTransition(from, to string) bool {
	if from != OrderStatusPending {
		return false
	}
	return to == OrderStatusCompleted || to == OrderStatusCancelled
}

func NewOrderID() string     { return "ORD-" + uuid.NewString() }
func NewOrderItemID() string { return "ORDITEM-" + uuid.NewString() }
func NewCustomerID() string  { return "CUST-" + uuid.NewString() }
func NewCategoryID() string  { return "CAT-" + uuid.NewString() }
func NewCouponID() string    { return "CPN-" + uuid.NewString() }

// NewRewardCode builds a unique reward coupon code.
func NewRewardCode() string {
	return fmt.Sprintf("THANKYOU-%s", uuid.NewString()[:8])
}

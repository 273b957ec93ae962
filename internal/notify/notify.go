// Package notify publishes order lifecycle events for downstream consumers
// (email, analytics). Publishing is best effort and never fails the caller.
package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/auroramart/storefront/internal/kafka"
	"github.com/auroramart/storefront/internal/models"
)

type Notifier interface {
	OrderPlaced(order *models.Order)
	OrderStatusChanged(order *models.Order, previous string)
	RewardIssued(customerID string, coupon *models.Coupon)
}

type event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status,omitempty"`
	Previous   string    `json:"previous,omitempty"`
	Total      string    `json:"total,omitempty"`
	CouponCode string    `json:"coupon_code,omitempty"`
	At         time.Time `json:"at"`
}

// Kafka publishes events keyed by order ID so one order's events stay on one
// partition, in order.
type Kafka struct {
	Producer *kafka.Producer
}

func (n *Kafka) publish(key string, e event) {
	e.At = time.Now().UTC()
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("notify: encode %s event: %v", e.Type, err)
		return
	}
	n.Producer.Publish([]byte(key), raw)
}

func (n *Kafka) OrderPlaced(order *models.Order) {
	n.publish(order.OrderID, event{
		Type:       "order.placed",
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Total:      order.Total.StringFixed(2),
	})
}

func (n *Kafka) OrderStatusChanged(order *models.Order, previous string) {
	n.publish(order.OrderID, event{
		Type:       "order.status.changed",
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Previous:   previous,
	})
}

func (n *Kafka) RewardIssued(customerID string, coupon *models.Coupon) {
	n.publish(customerID, event{
		Type:       "reward.issued",
		CustomerID: customerID,
		CouponCode: coupon.Code,
	})
}

// Noop satisfies Notifier when no broker is configured, as in tests.
type Noop struct{}

func (Noop) OrderPlaced(*models.Order) {}

func (Noop) OrderStatusChanged(*models.Order, string) {}

func (Noop) RewardIssued(string, *models.Coupon) {}

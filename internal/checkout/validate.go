package checkout

import (
	"fmt"
	"strings"
	"time"
)

const (
	PaymentCard           = "card"
	PaymentCashOnDelivery = "cod"
)

// ValidationError names the first input field that failed and why. These are
// recoverable: the customer corrects the form and resubmits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request is one checkout submission. Card fields are required only when
// PaymentMethod is "card". DisplayCurrency affects the response echo only;
// everything persisted is base currency.
type Request struct {
	SessionID       string
	CustomerID      string
	Email           string
	ShippingAddress string
	Notes           string
	CouponCode      string
	PaymentMethod   string
	CardNumber      string
	CardExpiry      string // MM/YY
	CardCVV         string
	DisplayCurrency string
}

func (r *Request) validate(now time.Time) error {
	if r.CustomerID == "" {
		return &ValidationError{Field: "customer", Reason: "required"}
	}
	if !strings.Contains(r.Email, "@") || strings.TrimSpace(r.Email) == "" {
		return &ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return &ValidationError{Field: "shipping_address", Reason: "required"}
	}

	switch r.PaymentMethod {
	case PaymentCashOnDelivery:
		return nil
	case PaymentCard:
		return r.validateCard(now)
	default:
		return &ValidationError{Field: "payment_method", Reason: "must be card or cod"}
	}
}

func (r *Request) validateCard(now time.Time) error {
	if !luhnValid(r.CardNumber) {
		return &ValidationError{Field: "card_number", Reason: "failed checksum"}
	}
	if len(r.CardCVV) < 3 || len(r.CardCVV) > 4 || !digitsOnly(r.CardCVV) {
		return &ValidationError{Field: "card_cvv", Reason: "must be 3 or 4 digits"}
	}

	expiry, err := time.Parse("01/06", r.CardExpiry)
	if err != nil {
		return &ValidationError{Field: "card_expiry", Reason: "must be MM/YY"}
	}
	// A card is good through the last day of its expiry month.
	endOfMonth := expiry.AddDate(0, 1, 0)
	if !now.Before(endOfMonth) {
		return &ValidationError{Field: "card_expiry", Reason: "card has expired"}
	}

	return nil
}

// luhnValid runs the standard mod-10 checksum over the card number, ignoring
// spaces. Non-digits or fewer than 12 digits fail outright.
func luhnValid(number string) bool {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 12 || !digitsOnly(number) {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

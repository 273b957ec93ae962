package checkout

import (
	"errors"
	"testing"
	"time"
)

var validateNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func validCardRequest() Request {
	return Request{
		SessionID:       "sess-1",
		CustomerID:      "CUST-1",
		Email:           "jo@example.com",
		ShippingAddress: "1 Marina Blvd",
		PaymentMethod:   PaymentCard,
		CardNumber:      "4242424242424242",
		CardExpiry:      "12/27",
		CardCVV:         "123",
	}
}

func fieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != field {
		t.Errorf("expected field %q, got %q", field, verr.Field)
	}
}

func TestValidateCardRequest(t *testing.T) {
	req := validCardRequest()
	if err := req.validate(validateNow); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateContactFields(t *testing.T) {
	req := validCardRequest()
	req.Email = "not-an-email"
	fieldError(t, req.validate(validateNow), "email")

	req = validCardRequest()
	req.ShippingAddress = "   "
	fieldError(t, req.validate(validateNow), "shipping_address")

	req = validCardRequest()
	req.CustomerID = ""
	fieldError(t, req.validate(validateNow), "customer")
}

func TestValidateLuhn(t *testing.T) {
	req := validCardRequest()
	req.CardNumber = "4242424242424241"
	fieldError(t, req.validate(validateNow), "card_number")

	req.CardNumber = "4111 1111 1111 1111"
	if err := req.validate(validateNow); err != nil {
		t.Errorf("spaced card number should pass, got %v", err)
	}

	req.CardNumber = "1234"
	fieldError(t, req.validate(validateNow), "card_number")
}

func TestValidateExpiry(t *testing.T) {
	req := validCardRequest()

	req.CardExpiry = "07/26"
	fieldError(t, req.validate(validateNow), "card_expiry")

	// Good through the last day of the expiry month.
	req.CardExpiry = "08/26"
	if err := req.validate(validateNow); err != nil {
		t.Errorf("current month should still be valid, got %v", err)
	}

	req.CardExpiry = "2026-08"
	fieldError(t, req.validate(validateNow), "card_expiry")
}

func TestValidateCVV(t *testing.T) {
	req := validCardRequest()

	for _, cvv := range []string{"12", "12345", "12a", ""} {
		req.CardCVV = cvv
		fieldError(t, req.validate(validateNow), "card_cvv")
	}

	req.CardCVV = "1234"
	if err := req.validate(validateNow); err != nil {
		t.Errorf("4-digit CVV should pass, got %v", err)
	}
}

func TestValidateCashOnDeliverySkipsCardChecks(t *testing.T) {
	req := validCardRequest()
	req.PaymentMethod = PaymentCashOnDelivery
	req.CardNumber = ""
	req.CardExpiry = ""
	req.CardCVV = ""

	if err := req.validate(validateNow); err != nil {
		t.Errorf("cod request rejected: %v", err)
	}
}

func TestValidateUnknownPaymentMethod(t *testing.T) {
	req := validCardRequest()
	req.PaymentMethod = "crypto"
	fieldError(t, req.validate(validateNow), "payment_method")
}

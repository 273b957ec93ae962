package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAddNewAndExistingLine(t *testing.T) {
	c := New()

	if err := c.Add("SKU-1", 2, dec("9.99"), "Widget", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add("SKU-1", 3, dec("9.99"), "Widget", ""); err != nil {
		t.Fatalf("Add again: %v", err)
	}

	line, ok := c.Lines["SKU-1"]
	if !ok {
		t.Fatal("line not found")
	}
	if line.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", line.Quantity)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	c := New()

	for _, qty := range []int{0, -1, -100} {
		if err := c.Add("SKU-1", qty, dec("1.00"), "Widget", ""); err != ErrInvalidQuantity {
			t.Errorf("Add with qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if !c.IsEmpty() {
		t.Error("cart should still be empty")
	}
}

func TestSetQuantityDeletesAtZero(t *testing.T) {
	c := New()
	_ = c.Add("SKU-1", 4, dec("2.50"), "Widget", "")

	c.SetQuantity("SKU-1", 2)
	if c.Lines["SKU-1"].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", c.Lines["SKU-1"].Quantity)
	}

	c.SetQuantity("SKU-1", 0)
	if _, ok := c.Lines["SKU-1"]; ok {
		t.Error("line should be deleted when quantity set to 0")
	}
}

func TestDecrementToZeroDeletesLine(t *testing.T) {
	c := New()
	_ = c.Add("SKU-1", 1, dec("2.50"), "Widget", "")

	c.Decrement("SKU-1")
	if !c.IsEmpty() {
		t.Error("decrementing the last unit should delete the line")
	}

	// no-op on a missing line
	c.Decrement("SKU-1")
	c.Increment("SKU-MISSING")
	if !c.IsEmpty() {
		t.Error("cart should stay empty")
	}
}

func TestIncrement(t *testing.T) {
	c := New()
	_ = c.Add("SKU-1", 1, dec("2.50"), "Widget", "")
	c.Increment("SKU-1")

	if c.Lines["SKU-1"].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", c.Lines["SKU-1"].Quantity)
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	_ = c.Add("SKU-1", 1, dec("1.00"), "A", "")
	_ = c.Add("SKU-2", 1, dec("2.00"), "B", "")

	c.Remove("SKU-1")
	if _, ok := c.Lines["SKU-1"]; ok {
		t.Error("SKU-1 should be removed")
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Error("cart should be empty after Clear")
	}
}

func TestSubtotalRoundsPerLine(t *testing.T) {
	c := New()
	// 3 * 0.333 = 0.999 -> 1.00 per line, not carried unrounded.
	_ = c.Add("SKU-1", 3, dec("0.333"), "A", "")
	_ = c.Add("SKU-2", 3, dec("0.333"), "B", "")

	want := dec("2.00")
	if got := c.Subtotal(); !got.Equal(want) {
		t.Errorf("expected subtotal %s, got %s", want, got)
	}
}

func TestSubtotal(t *testing.T) {
	c := New()
	_ = c.Add("SKU-1", 2, dec("19.99"), "A", "")
	_ = c.Add("SKU-2", 1, dec("5.00"), "B", "")

	want := dec("44.98")
	if got := c.Subtotal(); !got.Equal(want) {
		t.Errorf("expected subtotal %s, got %s", want, got)
	}
}

func TestItemsStableOrder(t *testing.T) {
	c := New()
	_ = c.Add("SKU-B", 1, dec("1.00"), "B", "")
	_ = c.Add("SKU-A", 1, dec("1.00"), "A", "")
	_ = c.Add("SKU-C", 1, dec("1.00"), "C", "")

	items := c.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"SKU-A", "SKU-B", "SKU-C"} {
		if items[i].SKU != want {
			t.Errorf("items[%d] = %s, want %s", i, items[i].SKU, want)
		}
	}
}

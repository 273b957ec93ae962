// Package cart holds a customer session's shopping cart and derives its
// base-currency subtotal.
package cart

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

// Line is one product entry in a cart, keyed by SKU. UnitPrice is base
// currency. Quantity is always > 0; a line reaching zero is deleted.
type Line struct {
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// LineTotal is the line's price*quantity rounded to 2 decimal places. Each
// line rounds independently so the subtotal never accumulates drift.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

type Cart struct {
	Lines map[string]Line `json:"lines"`
}

func New() *Cart {
	return &Cart{Lines: make(map[string]Line)}
}

// Add creates a line for the SKU or increases an existing line's quantity.
// Non-positive quantities are rejected.
func (c *Cart) Add(sku string, quantity int, unitPrice decimal.Decimal, name, imageURL string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if line, ok := c.Lines[sku]; ok {
		line.Quantity += quantity
		c.Lines[sku] = line
		return nil
	}
	c.Lines[sku] = Line{
		SKU:       sku,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Name:      name,
		ImageURL:  imageURL,
	}
	return nil
}

// SetQuantity overwrites a line's quantity; zero or less deletes the line.
func (c *Cart) SetQuantity(sku string, quantity int) {
	line, ok := c.Lines[sku]
	if !ok {
		return
	}
	if quantity <= 0 {
		delete(c.Lines, sku)
		return
	}
	line.Quantity = quantity
	c.Lines[sku] = line
}

func (c *Cart) Increment(sku string) {
	if line, ok := c.Lines[sku]; ok {
		c.SetQuantity(sku, line.Quantity+1)
	}
}

func (c *Cart) Decrement(sku string) {
	if line, ok := c.Lines[sku]; ok {
		c.SetQuantity(sku, line.Quantity-1)
	}
}

func (c *Cart) Remove(sku string) {
	delete(c.Lines, sku)
}

func (c *Cart) Clear() {
	c.Lines = make(map[string]Line)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Items returns the lines in stable SKU order.
func (c *Cart) Items() []Line {
	items := make([]Line, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, line)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items
}

// Subtotal sums the independently rounded line totals, in base currency.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

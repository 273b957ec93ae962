// Package currency converts base-currency (SGD) amounts to display
// currencies and back using a fixed rate table loaded once at startup.
package currency

import "github.com/shopspring/decimal"

// Base is the only storage currency; every persisted amount is SGD.
const Base = "SGD"

// Rates maps a currency code to its conversion rate from SGD. The table is
// immutable after construction; unknown codes resolve to the SGD rate.
type Rates map[string]decimal.Decimal

func DefaultRates() Rates {
	return Rates{
		"SGD": decimal.NewFromFloat(1.0),
		"USD": decimal.NewFromFloat(0.74),
		"EUR": decimal.NewFromFloat(0.68),
		"JPY": decimal.NewFromFloat(110.5),
		"GBP": decimal.NewFromFloat(0.58),
	}
}

type Converter struct {
	rates Rates
}

func NewConverter(rates Rates) *Converter {
	return &Converter{rates: rates}
}

func (c *Converter) rate(code string) decimal.Decimal {
	if r, ok := c.rates[code]; ok {
		return r
	}
	return c.rates[Base]
}

// ToDisplay converts a base-currency amount to the display currency,
// rounding half-up to 2 decimal places exactly once.
func (c *Converter) ToDisplay(amountBase decimal.Decimal, code string) decimal.Decimal {
	return amountBase.Mul(c.rate(code)).Round(2)
}

// ToBase converts a display-currency amount back to base currency,
// rounding half-up to 2 decimal places exactly once.
func (c *Converter) ToBase(amountDisplay decimal.Decimal, code string) decimal.Decimal {
	return amountDisplay.Div(c.rate(code)).Round(2)
}

// Supported reports whether code has an explicit rate.
func (c *Converter) Supported(code string) bool {
	_, ok := c.rates[code]
	return ok
}

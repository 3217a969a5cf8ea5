package services

import (
	"github.com/shopspring/decimal"

	"github.com/buddyengineerz/storefront/config"
)

// PricingRules are the checkout constants. There is one instance per
// process, built from config.
type PricingRules struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricingRules returns the storefront's standard rules: free
// shipping above 999, a 99 fee otherwise, and 18% GST.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		FreeShippingThreshold: decimal.NewFromInt(999),
		ShippingFee:           decimal.NewFromInt(99),
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

// PricingRulesFromConfig builds the rules from FREE_SHIPPING_THRESHOLD,
// SHIPPING_FEE and TAX_RATE.
func PricingRulesFromConfig() PricingRules {
	return PricingRules{
		FreeShippingThreshold: decimal.NewFromFloat(config.FreeShippingThreshold()),
		ShippingFee:           decimal.NewFromFloat(config.ShippingFee()),
		TaxRate:               decimal.NewFromFloat(config.TaxRate()),
	}
}

// PriceLine is one priced quantity.
type PriceLine struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals is the checkout summary.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Compute applies the rules:
//
//	subtotal = Σ price × qty
//	shipping = 0 when subtotal > threshold, else fee
//	tax      = round(subtotal × rate), half away from zero
//	total    = subtotal + shipping + tax
func (r PricingRules) Compute(lines []PriceLine) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		t.ItemCount += l.Quantity
	}
	t.Shipping = r.ShippingFee
	if t.Subtotal.GreaterThan(r.FreeShippingThreshold) {
		t.Shipping = decimal.Zero
	}
	t.Tax = t.Subtotal.Mul(r.TaxRate).Round(0)
	t.Total = t.Subtotal.Add(t.Shipping).Add(t.Tax)
	return t
}

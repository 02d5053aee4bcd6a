package domain

// PricingLine is one priced entry fed to the pricing engine.
type PricingLine struct {
	Price    int64
	Quantity int
}

// PricingPolicy configures the flat tax and shipping rules.
type PricingPolicy struct {
	// TaxRatePercent is applied to the subtotal and rounded half-up to the cent.
	TaxRatePercent int64
	// FreeShippingAbove waives shipping when the subtotal strictly exceeds it.
	FreeShippingAbove int64
	// FlatShipping is charged otherwise.
	FlatShipping int64
}

// DefaultPricingPolicy is 8% tax, free shipping above $50, $10 otherwise.
var DefaultPricingPolicy = PricingPolicy{
	TaxRatePercent:    8,
	FreeShippingAbove: 5000,
	FlatShipping:      1000,
}

package service

import (
	"github.com/shopspring/decimal"

	"food-marketplace/internal/domain"
)

// quote snapshots menu prices into line items and computes the pricing.
// Tax is a flat rate on the subtotal; every amount is rounded to cents.
// Nothing the client sends reaches the amounts.
func quote(lines []domain.LineItem, vendor *domain.Vendor, taxRate decimal.Decimal) ([]domain.LineItem, domain.Pricing, error) {
	subtotal := decimal.Zero
	for i := range lines {
		lines[i].LineTotal = lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity))).Round(2)
		subtotal = subtotal.Add(lines[i].LineTotal)
	}

	if subtotal.LessThan(vendor.MinimumOrder) {
		return nil, domain.Pricing{}, domain.NewError(domain.ErrBelowMinimumOrder, "",
			"subtotal %s is below the vendor minimum of %s", subtotal.StringFixed(2), vendor.MinimumOrder.StringFixed(2))
	}

	p := domain.Pricing{
		Subtotal:    subtotal,
		DeliveryFee: vendor.DeliveryFee.Round(2),
		Tax:         subtotal.Mul(taxRate).Round(2),
		Discount:    promotionDiscount(vendor, subtotal),
	}
	p.Total = p.Subtotal.Add(p.DeliveryFee).Add(p.Tax).Sub(p.Discount).Round(2)
	return lines, p, nil
}

// promotionDiscount is the server-side discount for an order. No promotions
// exist yet, so it is always zero.
func promotionDiscount(*domain.Vendor, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

package translator

import "github.com/shopspring/decimal"

var (
	taxNumerator   = decimal.NewFromInt(12)
	taxDenominator = decimal.NewFromInt(112)
)

// ExtractTax computes the 12% VAT share contained in a tax-inclusive amount,
// rounded half-up to 2 decimal places. Amounts in the CRM already include
// VAT, so the share is amount * 12 / 112, never amount * 0.12.
func ExtractTax(amount float64) float64 {
	tax := decimal.NewFromFloat(amount).
		Mul(taxNumerator).
		Div(taxDenominator).
		Round(2)
	result, _ := tax.Float64()
	return result
}

// round2 rounds a monetary amount half-up to 2 decimal places.
func round2(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return rounded
}

// Package vat computes VAT amounts for billing documents.
//
// All amounts are rounded to 2 decimal places using round-half-up, applied
// once per rate group rather than per line, so document totals and the
// per-rate breakdown always reconcile.
package vat

import "math"

// Round rounds a monetary amount to 2 decimal places, half up. The epsilon
// keeps amounts whose binary representation sits just under the half boundary
// (2.675 stored as 2.67499…) on the expected side.
func Round(v float64) float64 {
	return math.Floor(v*100+0.5+1e-9) / 100
}

// Amount returns the VAT due on base at the given percentage rate.
func Amount(base, rate float64) float64 {
	return Round(base * rate / 100)
}

// PriceWithVAT returns base plus the VAT due on it.
func PriceWithVAT(base, rate float64) float64 {
	return Round(base + Amount(base, rate))
}

// Line is the minimal projection of a document line the calculator needs.
type Line struct {
	Base float64 // quantity * unit price, before VAT
	Rate float64 // percentage, e.g. 20 for 20%
}

// BreakdownByRate groups lines by VAT rate and returns the VAT due per rate.
// Bases are summed per rate before rounding so the breakdown sums exactly to
// the document-level VAT total.
func BreakdownByRate(lines []Line) map[float64]float64 {
	bases := make(map[float64]float64)
	for _, l := range lines {
		bases[l.Rate] += l.Base
	}
	breakdown := make(map[float64]float64, len(bases))
	for rate, base := range bases {
		breakdown[rate] = Amount(base, rate)
	}
	return breakdown
}

// Totals derives document totals from its lines: subtotal excluding VAT, the
// VAT total, and the grand total including VAT.
func Totals(lines []Line) (subtotal, vatTotal, total float64) {
	for _, l := range lines {
		subtotal += l.Base
	}
	subtotal = Round(subtotal)
	for _, amount := range BreakdownByRate(lines) {
		vatTotal += amount
	}
	vatTotal = Round(vatTotal)
	total = Round(subtotal + vatTotal)
	return subtotal, vatTotal, total
}

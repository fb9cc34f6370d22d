package invoices

import (
	"fmt"

	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/billing/vat"
)

type ConversionMode string

const (
	// ModeFull bills the whole quote, optionally splitting off a deposit
	// first. The quote is converted immediately.
	ModeFull ConversionMode = "full"
	// ModePartial issues a deposit and leaves the quote accepted while an
	// amount remains convertible; a deposit covering the full total
	// converts the quote like ModeFull.
	ModePartial ConversionMode = "partial"
)

// DepositTerms holds the resolved deposit split. Percent is the stored value;
// Amount is derived from it on write, so the two can never diverge.
type DepositTerms struct {
	Percent float64
	Amount  float64
}

// ResolveDeposit reconciles the dual deposit inputs. Callers provide either a
// percentage or an absolute amount; the other is derived. When both are
// given, the percentage wins and the amount is recomputed from it.
func ResolveDeposit(quoteTotal float64, percent, amount *float64) (DepositTerms, error) {
	switch {
	case percent != nil:
		if *percent < 0 || *percent > 100 {
			return DepositTerms{}, &ValidationRangeError{Field: "deposit_percent", Value: *percent, Min: 0, Max: 100}
		}
		return DepositTerms{
			Percent: *percent,
			Amount:  vat.Round(quoteTotal * *percent / 100),
		}, nil
	case amount != nil:
		if *amount < 0 || *amount > quoteTotal {
			return DepositTerms{}, &ValidationRangeError{Field: "deposit_amount", Value: *amount, Min: 0, Max: quoteTotal}
		}
		terms := DepositTerms{Amount: vat.Round(*amount)}
		if quoteTotal > 0 {
			terms.Percent = *amount / quoteTotal * 100
		}
		return terms, nil
	default:
		return DepositTerms{}, &ValidationRangeError{Field: "deposit", Value: 0, Min: 0, Max: quoteTotal}
	}
}

// ConversionPlan is the pure outcome of planning an invoice generation from
// an accepted quote. Nothing is written until the plan validates.
type ConversionPlan struct {
	Mode ConversionMode
	// Deposit is set when the invoice to create is a deposit invoice.
	Deposit *DepositTerms
	// InvoiceTotal is the total of the invoice to create now.
	InvoiceTotal float64
	// RemainingAfter is the quote amount still convertible once the
	// invoice is created.
	RemainingAfter float64
	// ConvertQuote indicates the quote must flip to converted in the same
	// transaction.
	ConvertQuote bool
}

// PlanConversion computes what invoice to generate from the quote. The quote
// must already be accepted; alreadyInvoiced is the sum of totals of invoices
// sourced from it. Over-conversion fails before any side effect.
func PlanConversion(q quotes.Quote, alreadyInvoiced float64, mode ConversionMode, depositPercent, depositAmount *float64) (ConversionPlan, error) {
	remaining := vat.Round(q.TotalAmount - alreadyInvoiced)

	plan := ConversionPlan{Mode: mode}
	switch mode {
	case ModeFull:
		if depositPercent == nil && depositAmount == nil {
			plan.InvoiceTotal = q.TotalAmount
			plan.ConvertQuote = true
			break
		}
		terms, err := ResolveDeposit(q.TotalAmount, depositPercent, depositAmount)
		if err != nil {
			return ConversionPlan{}, err
		}
		plan.Deposit = &terms
		plan.InvoiceTotal = terms.Amount
		plan.ConvertQuote = true
	case ModePartial:
		terms, err := ResolveDeposit(q.TotalAmount, depositPercent, depositAmount)
		if err != nil {
			return ConversionPlan{}, err
		}
		plan.Deposit = &terms
		plan.InvoiceTotal = terms.Amount
	default:
		return ConversionPlan{}, fmt.Errorf("invoices: unknown conversion mode %q", mode)
	}

	// Guard the conversion invariant: invoices sourced from a quote never
	// exceed its total. The half-cent tolerance absorbs rounding of the
	// derived deposit amount.
	if plan.InvoiceTotal > remaining+0.005 {
		return ConversionPlan{}, &OverConversionError{
			QuoteID:   q.ID,
			Requested: plan.InvoiceTotal,
			Remaining: remaining,
		}
	}
	plan.RemainingAfter = vat.Round(remaining - plan.InvoiceTotal)
	// A partial conversion that exhausts the quote converts it too, so a
	// 100% deposit does not strand the quote in accepted.
	if plan.RemainingAfter <= 0 {
		plan.ConvertQuote = true
	}
	return plan, nil
}

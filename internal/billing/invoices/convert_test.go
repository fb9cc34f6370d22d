package invoices

import (
	"errors"
	"testing"

	"github.com/facturio/facturio/internal/billing/quotes"
)

func acceptedQuote(total float64) quotes.Quote {
	return quotes.Quote{
		ID:          1,
		DocNumber:   "DEV-2026-0001",
		Status:      quotes.StatusAccepted,
		TotalAmount: total,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestResolveDepositFromPercent(t *testing.T) {
	terms, err := ResolveDeposit(10000, floatPtr(30), nil)
	if err != nil {
		t.Fatalf("ResolveDeposit: %v", err)
	}
	if terms.Percent != 30 || terms.Amount != 3000 {
		t.Fatalf("terms = %+v, want 30%% / 3000", terms)
	}
}

func TestResolveDepositFromAmount(t *testing.T) {
	terms, err := ResolveDeposit(10000, nil, floatPtr(2500))
	if err != nil {
		t.Fatalf("ResolveDeposit: %v", err)
	}
	if terms.Amount != 2500 || terms.Percent != 25 {
		t.Fatalf("terms = %+v, want 25%% / 2500", terms)
	}
}

func TestResolveDepositPercentWins(t *testing.T) {
	terms, err := ResolveDeposit(10000, floatPtr(30), floatPtr(9999))
	if err != nil {
		t.Fatalf("ResolveDeposit: %v", err)
	}
	if terms.Amount != 3000 {
		t.Fatalf("amount = %v, want 3000 derived from percent", terms.Amount)
	}
}

func TestResolveDepositRanges(t *testing.T) {
	cases := []struct {
		name    string
		percent *float64
		amount  *float64
	}{
		{"percent over 100", floatPtr(150), nil},
		{"negative percent", floatPtr(-5), nil},
		{"amount over total", nil, floatPtr(20000)},
		{"negative amount", nil, floatPtr(-1)},
		{"neither provided", nil, nil},
	}
	for _, tc := range cases {
		_, err := ResolveDeposit(10000, tc.percent, tc.amount)
		var rangeErr *ValidationRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("%s: expected ValidationRangeError, got %v", tc.name, err)
		}
	}
}

func TestPlanConversionFull(t *testing.T) {
	plan, err := PlanConversion(acceptedQuote(10000), 0, ModeFull, nil, nil)
	if err != nil {
		t.Fatalf("PlanConversion: %v", err)
	}
	if plan.Deposit != nil {
		t.Fatal("full conversion planned a deposit")
	}
	if plan.InvoiceTotal != 10000 || !plan.ConvertQuote {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.RemainingAfter != 0 {
		t.Fatalf("remaining after = %v, want 0", plan.RemainingAfter)
	}
}

func TestPlanConversionPartialDeposit(t *testing.T) {
	plan, err := PlanConversion(acceptedQuote(10000), 0, ModePartial, floatPtr(30), nil)
	if err != nil {
		t.Fatalf("PlanConversion: %v", err)
	}
	if plan.Deposit == nil || plan.Deposit.Amount != 3000 {
		t.Fatalf("deposit = %+v, want 3000", plan.Deposit)
	}
	if plan.ConvertQuote {
		t.Fatal("partial conversion flipped the quote")
	}
	if plan.RemainingAfter != 7000 {
		t.Fatalf("remaining after = %v, want 7000", plan.RemainingAfter)
	}
}

func TestPlanConversionPartialExhaustsQuote(t *testing.T) {
	// A deposit covering the full total converts the quote like ModeFull.
	plan, err := PlanConversion(acceptedQuote(10000), 0, ModePartial, floatPtr(100), nil)
	if err != nil {
		t.Fatalf("PlanConversion: %v", err)
	}
	if plan.RemainingAfter != 0 {
		t.Fatalf("remaining after = %v, want 0", plan.RemainingAfter)
	}
	if !plan.ConvertQuote {
		t.Fatal("exhausting deposit left the quote convertible")
	}

	// Same when a last partial slice consumes what earlier invoices left.
	plan, err = PlanConversion(acceptedQuote(10000), 7000, ModePartial, nil, floatPtr(3000))
	if err != nil {
		t.Fatalf("PlanConversion: %v", err)
	}
	if !plan.ConvertQuote {
		t.Fatal("final partial slice left the quote convertible")
	}
}

func TestPlanConversionDepositRoundTrip(t *testing.T) {
	// Deposit plus remainder must reconstruct the quote total to the cent.
	total := 1234.56
	plan, err := PlanConversion(acceptedQuote(total), 0, ModePartial, floatPtr(33.33), nil)
	if err != nil {
		t.Fatalf("PlanConversion: %v", err)
	}
	sum := plan.InvoiceTotal + plan.RemainingAfter
	if diff := sum - total; diff > 0.01 || diff < -0.01 {
		t.Fatalf("deposit %v + remainder %v = %v, want %v", plan.InvoiceTotal, plan.RemainingAfter, sum, total)
	}
}

func TestPlanConversionOverConversion(t *testing.T) {
	// 7000 already invoiced on a 10000 quote leaves 3000 convertible.
	_, err := PlanConversion(acceptedQuote(10000), 7000, ModePartial, nil, floatPtr(5000))
	var overErr *OverConversionError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverConversionError, got %v", err)
	}
	if overErr.Remaining != 3000 {
		t.Fatalf("remaining = %v, want 3000", overErr.Remaining)
	}
}

func TestPlanConversionFullAfterPartial(t *testing.T) {
	_, err := PlanConversion(acceptedQuote(10000), 3000, ModeFull, nil, nil)
	var overErr *OverConversionError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverConversionError for full conversion of partially invoiced quote, got %v", err)
	}
}

func TestPlanConversionUnknownMode(t *testing.T) {
	if _, err := PlanConversion(acceptedQuote(10000), 0, ConversionMode("half"), nil, nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

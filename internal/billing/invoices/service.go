package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/billing/vat"
	"github.com/facturio/facturio/internal/shared"
)

var (
	ErrInvalidStatus = errors.New("invoices: invalid status transition")
	// ErrNothingToInvoice is returned when a balance invoice is requested
	// for a quote that is already fully invoiced.
	ErrNothingToInvoice = errors.New("invoices: quote fully invoiced")
	// ErrBalanceAlreadyBilled is returned when the deposit invoice already
	// links to a balance invoice.
	ErrBalanceAlreadyBilled = errors.New("invoices: balance invoice already created")
)

// Service coordinates invoice generation, quote conversion and payment
// tracking.
type Service struct {
	repo Repository
	idem *shared.IdempotencyStore
	now  func() time.Time
}

func NewService(repo Repository, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, idem: idem, now: time.Now}
}

func buildInvoiceLines(invoiceID int64, reqs []CreateInvoiceLineReq, now time.Time) []InvoiceLine {
	lines := make([]InvoiceLine, len(reqs))
	for i, lr := range reqs {
		order := lr.LineOrder
		if order == 0 {
			order = i + 1
		}
		lines[i] = InvoiceLine{
			InvoiceID:   invoiceID,
			Description: lr.Description,
			Quantity:    lr.Quantity,
			UnitPrice:   lr.UnitPrice,
			VATRate:     lr.VATRate,
			LineOrder:   order,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return lines
}

// Create registers a manually drafted invoice, outside any quote flow.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	now := s.now()
	lines := buildInvoiceLines(0, req.Lines, now)

	vatLines := make([]vat.Line, len(lines))
	for i, l := range lines {
		vatLines[i] = vat.Line{Base: l.Quantity * l.UnitPrice, Rate: l.VATRate}
	}
	subtotal, vatAmount, total := vat.Totals(vatLines)

	inv := Invoice{
		CompanyID:   req.CompanyID,
		ClientID:    req.ClientID,
		Status:      StatusDraft,
		Currency:    req.Currency,
		Subtotal:    subtotal,
		VATAmount:   vatAmount,
		TotalAmount: total,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		docNumber, err := repo.GenerateNumber(ctx, req.CompanyID, req.IssueDate)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		inv.DocNumber = docNumber

		invoiceID, err = repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		for _, line := range lines {
			line.InvoiceID = invoiceID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, invoiceID)
}

// ConvertQuote generates an invoice from an accepted quote. Full conversions
// without a deposit bill the whole quote; a deposit request issues the
// deposit invoice now and leaves the balance for an explicit follow-up call.
// The invoice write, the over-conversion check and the quote status flip
// commit in one transaction.
func (s *Service) ConvertQuote(ctx context.Context, req ConvertQuoteRequest) (*Invoice, error) {
	if s.idem != nil && req.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, req.IdempotencyKey, "invoices.convert"); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.GetQuote(ctx, req.QuoteID)
		if err != nil {
			return fmt.Errorf("get quote: %w", err)
		}

		// Transition validates acceptance and produces the canonical
		// error for anything else; the flip is only persisted when the
		// plan says the quote is fully converted.
		converted, err := quotes.Transition(*quote, quotes.ActionConvert, quotes.TransitionPayload{Now: now})
		if err != nil {
			return err
		}

		already, err := repo.SumInvoicedForQuote(ctx, quote.ID)
		if err != nil {
			return fmt.Errorf("sum invoiced: %w", err)
		}

		plan, err := PlanConversion(*quote, already, req.Mode, req.DepositPercent, req.DepositAmount)
		if err != nil {
			return err
		}

		inv, lines := s.invoiceFromPlan(*quote, plan, req.DueDate, now)
		docNumber, err := repo.GenerateNumber(ctx, quote.CompanyID, now)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		inv.DocNumber = docNumber

		invoiceID, err = repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		for _, line := range lines {
			line.InvoiceID = invoiceID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}

		if plan.ConvertQuote {
			if err := repo.UpdateQuoteStatus(ctx, quote.ID, converted.Status); err != nil {
				return fmt.Errorf("convert quote: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if s.idem != nil && req.IdempotencyKey != "" {
			_ = s.idem.Delete(ctx, req.IdempotencyKey)
		}
		return nil, err
	}
	return s.Get(ctx, invoiceID)
}

// invoiceFromPlan materializes the planned invoice. Full conversions copy the
// quote lines; deposit invoices carry a single deposit line. Deposit lines
// are billed at 0% VAT, the tax follows on the balance invoice.
func (s *Service) invoiceFromPlan(q quotes.Quote, plan ConversionPlan, dueDate, now time.Time) (Invoice, []InvoiceLine) {
	inv := Invoice{
		CompanyID:     q.CompanyID,
		ClientID:      q.ClientID,
		SourceQuoteID: &q.ID,
		Status:        StatusSent,
		Currency:      q.Currency,
		IssueDate:     now,
		DueDate:       dueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if plan.Deposit == nil {
		inv.Subtotal = q.Subtotal
		inv.VATAmount = q.VATAmount
		inv.TotalAmount = q.TotalAmount
		lines := make([]InvoiceLine, len(q.Lines))
		for i, ql := range q.Lines {
			lines[i] = InvoiceLine{
				Description: ql.Description,
				Quantity:    ql.Quantity,
				UnitPrice:   ql.UnitPrice,
				VATRate:     ql.VATRate,
				LineOrder:   ql.LineOrder,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}
		return inv, lines
	}

	inv.IsDeposit = true
	percent := plan.Deposit.Percent
	inv.DepositPercent = &percent
	inv.Subtotal = plan.Deposit.Amount
	inv.TotalAmount = plan.Deposit.Amount
	line := InvoiceLine{
		Description: fmt.Sprintf("Deposit (%.4g%%) on quote %s", percent, q.DocNumber),
		Quantity:    1,
		UnitPrice:   plan.Deposit.Amount,
		LineOrder:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return inv, []InvoiceLine{line}
}

// CreateBalanceInvoice bills the remainder of a quote after its deposit
// invoice. It is an explicit operation, typically triggered on delivery,
// never automatic. Deposits bill a gross slice at 0% VAT, so the balance
// invoice restates the quote lines at their real rates and deducts the
// deposited amount; the quote's full VAT is declared here.
func (s *Service) CreateBalanceInvoice(ctx context.Context, depositInvoiceID int64, req CreateBalanceInvoiceRequest) (*Invoice, error) {
	now := s.now()
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		deposit, err := repo.Get(ctx, depositInvoiceID)
		if err != nil {
			return fmt.Errorf("get deposit invoice: %w", err)
		}
		if !deposit.IsDeposit || deposit.SourceQuoteID == nil {
			return fmt.Errorf("%w: invoice %d is not a deposit invoice", ErrInvalidStatus, depositInvoiceID)
		}
		if deposit.BalanceInvoiceID != nil {
			return ErrBalanceAlreadyBilled
		}

		quote, err := repo.GetQuote(ctx, *deposit.SourceQuoteID)
		if err != nil {
			return fmt.Errorf("get quote: %w", err)
		}
		already, err := repo.SumInvoicedForQuote(ctx, quote.ID)
		if err != nil {
			return fmt.Errorf("sum invoiced: %w", err)
		}
		remaining := vat.Round(quote.TotalAmount - already)
		if remaining <= 0 {
			return ErrNothingToInvoice
		}

		inv := Invoice{
			CompanyID:     quote.CompanyID,
			ClientID:      quote.ClientID,
			SourceQuoteID: &quote.ID,
			Status:        StatusSent,
			Currency:      quote.Currency,
			Subtotal:      vat.Round(quote.Subtotal - already),
			VATAmount:     quote.VATAmount,
			TotalAmount:   remaining,
			IssueDate:     now,
			DueDate:       req.DueDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		inv.DocNumber, err = repo.GenerateNumber(ctx, quote.CompanyID, now)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}

		invoiceID, err = repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create balance invoice: %w", err)
		}
		lines := make([]InvoiceLine, 0, len(quote.Lines)+1)
		for _, ql := range quote.Lines {
			lines = append(lines, InvoiceLine{
				Description: ql.Description,
				Quantity:    ql.Quantity,
				UnitPrice:   ql.UnitPrice,
				VATRate:     ql.VATRate,
				LineOrder:   ql.LineOrder,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		lines = append(lines, InvoiceLine{
			Description: fmt.Sprintf("Deposit already invoiced on quote %s", quote.DocNumber),
			Quantity:    1,
			UnitPrice:   vat.Round(-already),
			LineOrder:   len(quote.Lines) + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		for _, line := range lines {
			line.InvoiceID = invoiceID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert balance line: %w", err)
			}
		}
		if err := repo.SetBalanceLink(ctx, deposit.ID, invoiceID); err != nil {
			return fmt.Errorf("link balance invoice: %w", err)
		}

		// A partially converted quote is done once nothing is left.
		if quote.Status == quotes.StatusAccepted && vat.Round(remaining-inv.TotalAmount) <= 0 {
			if err := repo.UpdateQuoteStatus(ctx, quote.ID, quotes.StatusConverted); err != nil {
				return fmt.Errorf("convert quote: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, invoiceID)
}

// Send releases a draft invoice to the client.
func (s *Service) Send(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT invoices can be sent", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusSent); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Cancel voids an invoice that has no recorded payments.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		return nil, fmt.Errorf("%w: invoice is already %s", ErrInvalidStatus, inv.Status)
	}
	if inv.PaidAmount > 0 {
		return nil, fmt.Errorf("%w: invoice has recorded payments, issue a credit note instead", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns the invoice with its payment status derived from the clock, so
// an unpaid invoice past its due date reads as overdue without a record
// write.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Status = DeriveStatus(*inv, s.now())
	return inv, nil
}

func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	result, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for i := range result {
		result[i].Status = DeriveStatus(result[i], now)
	}
	return result, total, nil
}

// RecordPayment appends a completed payment and recomputes the invoice's
// paid amount and status in the same transaction. A payment that would
// exceed the remaining balance is refused outright rather than clamped.
func (s *Service) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*Payment, error) {
	now := s.now()
	var paymentID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, req.InvoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if inv.Status == StatusDraft || inv.Status == StatusCancelled {
			return fmt.Errorf("%w: cannot pay a %s invoice", ErrInvalidStatus, inv.Status)
		}

		remaining := RemainingBalance(*inv)
		if req.Amount > remaining+0.005 {
			return &ValidationRangeError{Field: "amount", Value: req.Amount, Min: 0, Max: remaining}
		}

		payment := Payment{
			InvoiceID: req.InvoiceID,
			Reference: uuid.NewString(),
			Amount:    req.Amount,
			PaidAt:    req.PaidAt,
			Method:    req.Method,
			Status:    PaymentCompleted,
			Note:      req.Note,
			CreatedAt: now,
			UpdatedAt: now,
		}
		paymentID, err = repo.CreatePayment(ctx, payment)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		inv.PaidAmount = vat.Round(inv.PaidAmount + req.Amount)
		return repo.SetPaid(ctx, inv.ID, inv.PaidAmount, DeriveStatus(*inv, now))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetPayment(ctx, paymentID)
}

// DeletePayment removes a payment and recomputes the owning invoice. A
// delete that would drive the paid amount negative is rejected.
func (s *Service) DeletePayment(ctx context.Context, paymentID int64) error {
	now := s.now()
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		payment, err := repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		inv, err := repo.Get(ctx, payment.InvoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}

		newPaid := vat.Round(inv.PaidAmount - payment.Amount)
		if newPaid < 0 {
			return &ValidationRangeError{Field: "paid_amount", Value: newPaid, Min: 0, Max: inv.TotalAmount}
		}

		if err := repo.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		inv.PaidAmount = newPaid
		return repo.SetPaid(ctx, inv.ID, newPaid, DeriveStatus(*inv, now))
	})
}

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// ApplyCredit settles part of an invoice from a credit note and recomputes
// the invoice like any other payment event.
func (s *Service) ApplyCredit(ctx context.Context, invoiceID int64, amount float64) (*Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return s.applyCredit(ctx, repo, invoiceID, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, invoiceID)
}

// ApplyCreditIn applies the credit on a transaction the caller already holds,
// so the credit-notes service can settle the invoice and update its note in
// one commit.
func (s *Service) ApplyCreditIn(ctx context.Context, repo Repository, invoiceID int64, amount float64) error {
	return s.applyCredit(ctx, repo, invoiceID, amount)
}

func (s *Service) applyCredit(ctx context.Context, repo Repository, invoiceID int64, amount float64) error {
	inv, err := repo.Get(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status == StatusDraft || inv.Status == StatusCancelled {
		return fmt.Errorf("%w: cannot apply credit to a %s invoice", ErrInvalidStatus, inv.Status)
	}
	remaining := RemainingBalance(*inv)
	if amount <= 0 || amount > remaining+0.005 {
		return &ValidationRangeError{Field: "credit_amount", Value: amount, Min: 0, Max: remaining}
	}
	inv.PaidAmount = vat.Round(inv.PaidAmount + amount)
	return repo.SetPaid(ctx, inv.ID, inv.PaidAmount, DeriveStatus(*inv, s.now()))
}

// VATSummary aggregates invoiced VAT per rate over a period using the same
// calculator as invoice totals, so declaration figures always reconcile with
// document figures.
func (s *Service) VATSummary(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
	lines, err := s.repo.VATBaseByRate(ctx, req.CompanyID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("vat base by rate: %w", err)
	}

	summary := &VATSummary{
		CompanyID: req.CompanyID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		ByRate:    make(map[string]float64),
	}
	var baseTotal float64
	for _, l := range lines {
		baseTotal += l.Base
	}
	summary.BaseTotal = vat.Round(baseTotal)

	var vatTotal float64
	for rate, amount := range vat.BreakdownByRate(lines) {
		summary.ByRate[fmt.Sprintf("%g", rate)] = amount
		vatTotal += amount
	}
	summary.VATTotal = vat.Round(vatTotal)
	return summary, nil
}

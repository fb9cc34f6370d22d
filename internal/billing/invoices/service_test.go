package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/billing/vat"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	invoices    map[int64]*Invoice
	lines       map[int64][]InvoiceLine
	payments    map[int64]*Payment
	quotes      map[int64]*quotes.Quote
	nextID      int64
	nextPayID   int64
	docCounters map[int64]int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		invoices:    make(map[int64]*Invoice),
		lines:       make(map[int64][]InvoiceLine),
		payments:    make(map[int64]*Payment),
		quotes:      make(map[int64]*quotes.Quote),
		docCounters: make(map[int64]int),
		nextID:      1,
		nextPayID:   1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	copied.Lines = append([]InvoiceLine(nil), m.lines[id]...)
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var result []Invoice
	for _, inv := range m.invoices {
		if inv.CompanyID != req.CompanyID {
			continue
		}
		if req.QuoteID != nil && (inv.SourceQuoteID == nil || *inv.SourceQuoteID != *req.QuoteID) {
			continue
		}
		result = append(result, *inv)
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, inv Invoice) (int64, error) {
	id := m.nextID
	m.nextID++
	inv.ID = id
	m.invoices[id] = &inv
	return id, nil
}

func (m *mockRepository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	line.ID = int64(len(m.lines[line.InvoiceID]) + 1)
	m.lines[line.InvoiceID] = append(m.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	return nil
}

func (m *mockRepository) SetPaid(ctx context.Context, id int64, paid float64, status InvoiceStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (m *mockRepository) SetBalanceLink(ctx context.Context, depositID, balanceID int64) error {
	inv, ok := m.invoices[depositID]
	if !ok {
		return ErrNotFound
	}
	inv.BalanceInvoiceID = &balanceID
	return nil
}

func (m *mockRepository) SumInvoicedForQuote(ctx context.Context, quoteID int64) (float64, error) {
	var sum float64
	for _, inv := range m.invoices {
		if inv.SourceQuoteID != nil && *inv.SourceQuoteID == quoteID && inv.Status != StatusCancelled {
			sum += inv.TotalAmount
		}
	}
	return sum, nil
}

func (m *mockRepository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	m.docCounters[companyID]++
	return fmt.Sprintf("FAC-%d-%04d", date.Year(), m.docCounters[companyID]), nil
}

func (m *mockRepository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	var result []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockRepository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	id := m.nextPayID
	m.nextPayID++
	p.ID = id
	m.payments[id] = &p
	return id, nil
}

func (m *mockRepository) DeletePayment(ctx context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *mockRepository) GetQuote(ctx context.Context, id int64) (*quotes.Quote, error) {
	q, ok := m.quotes[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (m *mockRepository) UpdateQuoteStatus(ctx context.Context, id int64, status quotes.QuoteStatus) error {
	q, ok := m.quotes[id]
	if !ok {
		return quotes.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *mockRepository) VATBaseByRate(ctx context.Context, companyID int64, from, to time.Time) ([]vat.Line, error) {
	grouped := make(map[float64]float64)
	for id, inv := range m.invoices {
		if inv.CompanyID != companyID || inv.Status == StatusDraft || inv.Status == StatusCancelled {
			continue
		}
		for _, l := range m.lines[id] {
			grouped[l.VATRate] += l.Quantity * l.UnitPrice
		}
	}
	var result []vat.Line
	for rate, base := range grouped {
		result = append(result, vat.Line{Base: base, Rate: rate})
	}
	return result, nil
}

// ============================================================================
// HELPERS
// ============================================================================

var svcNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *mockRepository) *Service {
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return svcNow }
	return svc
}

func seedAcceptedQuote(repo *mockRepository, total float64) *quotes.Quote {
	subtotal := total / 1.2
	q := &quotes.Quote{
		ID:          1,
		DocNumber:   "DEV-2026-0001",
		CompanyID:   1,
		ClientID:    10,
		Status:      quotes.StatusAccepted,
		Currency:    "EUR",
		Subtotal:    vat.Round(subtotal),
		VATAmount:   vat.Round(total - subtotal),
		TotalAmount: total,
		ExpiryDate:  svcNow.AddDate(0, 1, 0),
		Lines: []quotes.QuoteLine{
			{ID: 1, QuoteID: 1, Description: "Refonte site", Quantity: 1, UnitPrice: vat.Round(subtotal), VATRate: 20, LineOrder: 1},
		},
	}
	repo.quotes[q.ID] = q
	return q
}

func convertReq(mode ConversionMode) ConvertQuoteRequest {
	return ConvertQuoteRequest{
		QuoteID: 1,
		Mode:    mode,
		DueDate: svcNow.AddDate(0, 0, 30),
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestConvertQuoteFull(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 12000)

	inv, err := svc.ConvertQuote(context.Background(), convertReq(ModeFull))
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-0001", inv.DocNumber)
	assert.Equal(t, StatusSent, inv.Status)
	assert.False(t, inv.IsDeposit)
	assert.InDelta(t, 12000.0, inv.TotalAmount, 0.001)
	require.NotNil(t, inv.SourceQuoteID)
	assert.Equal(t, int64(1), *inv.SourceQuoteID)
	assert.Len(t, inv.Lines, 1)

	// The quote flipped to converted in the same operation.
	assert.Equal(t, quotes.StatusConverted, repo.quotes[1].Status)
}

func TestConvertQuoteDeposit(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 10000)

	req := convertReq(ModePartial)
	req.DepositPercent = floatPtr(30)
	inv, err := svc.ConvertQuote(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, inv.IsDeposit)
	require.NotNil(t, inv.DepositPercent)
	assert.InDelta(t, 30.0, *inv.DepositPercent, 0.001)
	assert.InDelta(t, 3000.0, inv.TotalAmount, 0.001)
	require.Len(t, inv.Lines, 1)
	assert.Contains(t, inv.Lines[0].Description, "DEV-2026-0001")

	// Partial conversion leaves the quote accepted and convertible.
	assert.Equal(t, quotes.StatusAccepted, repo.quotes[1].Status)
}

func TestConvertQuoteHundredPercentDepositConverts(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 10000)

	req := convertReq(ModePartial)
	req.DepositPercent = floatPtr(100)
	inv, err := svc.ConvertQuote(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, inv.IsDeposit)
	assert.InDelta(t, 10000.0, inv.TotalAmount, 0.001)
	// Nothing remains convertible, so the quote flips even in partial mode.
	assert.Equal(t, quotes.StatusConverted, repo.quotes[1].Status)
}

func TestConvertQuoteRefusesNonAccepted(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedAcceptedQuote(repo, 10000)
	q.Status = quotes.StatusDraft

	_, err := svc.ConvertQuote(context.Background(), convertReq(ModeFull))
	var transitionErr *quotes.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, quotes.ActionConvert, transitionErr.Action)
}

func TestConvertQuoteOverConversion(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 10000)

	req := convertReq(ModePartial)
	req.DepositPercent = floatPtr(80)
	_, err := svc.ConvertQuote(context.Background(), req)
	require.NoError(t, err)

	// A second deposit beyond the remaining 2000 must fail atomically.
	req.DepositPercent = nil
	req.DepositAmount = floatPtr(5000)
	_, err = svc.ConvertQuote(context.Background(), req)
	var overErr *OverConversionError
	require.ErrorAs(t, err, &overErr)
	assert.InDelta(t, 2000.0, overErr.Remaining, 0.001)
	assert.Len(t, repo.invoices, 1)
}

func TestCreateBalanceInvoice(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 10000)
	ctx := context.Background()

	req := convertReq(ModePartial)
	req.DepositPercent = floatPtr(30)
	deposit, err := svc.ConvertQuote(ctx, req)
	require.NoError(t, err)

	balance, err := svc.CreateBalanceInvoice(ctx, deposit.ID, CreateBalanceInvoiceRequest{DueDate: svcNow.AddDate(0, 0, 45)})
	require.NoError(t, err)

	assert.InDelta(t, 7000.0, balance.TotalAmount, 0.001)
	assert.False(t, balance.IsDeposit)
	require.NotNil(t, balance.SourceQuoteID)
	assert.Equal(t, int64(1), *balance.SourceQuoteID)

	// The balance restates the quote lines at their rates and deducts the
	// gross deposit as a 0% line, carrying the quote's VAT.
	assert.InDelta(t, 1666.67, balance.VATAmount, 0.01)
	require.Len(t, balance.Lines, 2)
	deduction := balance.Lines[len(balance.Lines)-1]
	assert.InDelta(t, -3000.0, deduction.UnitPrice, 0.001)
	assert.Zero(t, deduction.VATRate)
	assert.InDelta(t, balance.Subtotal+balance.VATAmount, balance.TotalAmount, 0.01)

	// Deposit links to its balance invoice, quote is now fully converted.
	dep, err := svc.Get(ctx, deposit.ID)
	require.NoError(t, err)
	require.NotNil(t, dep.BalanceInvoiceID)
	assert.Equal(t, balance.ID, *dep.BalanceInvoiceID)
	assert.Equal(t, quotes.StatusConverted, repo.quotes[1].Status)

	// Deposit plus balance reconstruct the quote total.
	assert.InDelta(t, 10000.0, deposit.TotalAmount+balance.TotalAmount, 0.01)

	// A second balance invoice is refused.
	_, err = svc.CreateBalanceInvoice(ctx, deposit.ID, CreateBalanceInvoiceRequest{DueDate: svcNow})
	require.ErrorIs(t, err, ErrBalanceAlreadyBilled)
}

func TestDepositBalanceVATMatchesFullConversion(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 12000)
	ctx := context.Background()

	req := convertReq(ModePartial)
	req.DepositPercent = floatPtr(30)
	deposit, err := svc.ConvertQuote(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, deposit.VATAmount)

	balance, err := svc.CreateBalanceInvoice(ctx, deposit.ID, CreateBalanceInvoiceRequest{DueDate: svcNow.AddDate(0, 0, 45)})
	require.NoError(t, err)

	// The quote's entire VAT lands on the balance invoice.
	assert.InDelta(t, 2000.0, balance.VATAmount, 0.01)
	assert.InDelta(t, 8400.0, balance.TotalAmount, 0.01)

	// The declaration sees the same figures a full conversion would have
	// produced: the 0% deposit bases net out across the two invoices.
	summary, err := svc.VATSummary(ctx, VATSummaryRequest{CompanyID: 1, DateFrom: svcNow.AddDate(0, -1, 0), DateTo: svcNow.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, summary.BaseTotal, 0.01)
	assert.InDelta(t, 2000.0, summary.VATTotal, 0.01)
	assert.InDelta(t, 2000.0, summary.ByRate["20"], 0.01)
}

func TestRecordPaymentFlow(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 1500)
	ctx := context.Background()

	inv, err := svc.ConvertQuote(ctx, convertReq(ModeFull))
	require.NoError(t, err)

	payment, err := svc.RecordPayment(ctx, RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: 500, PaidAt: svcNow, Method: "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, payment.Status)
	assert.NotEmpty(t, payment.Reference)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, inv.Status)
	assert.InDelta(t, 1000.0, RemainingBalance(*inv), 0.001)

	_, err = svc.RecordPayment(ctx, RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: 1000, PaidAt: svcNow, Method: "transfer",
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inv.Status)
	assert.InDelta(t, 0.0, RemainingBalance(*inv), 0.001)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 1500)
	ctx := context.Background()

	inv, err := svc.ConvertQuote(ctx, convertReq(ModeFull))
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: 2000, PaidAt: svcNow, Method: "transfer",
	})
	var rangeErr *ValidationRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "amount", rangeErr.Field)
	assert.InDelta(t, 1500.0, rangeErr.Max, 0.001)

	// No payment persisted, no paid amount recorded.
	assert.Empty(t, repo.payments)
	got, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PaidAmount)
}

func TestDeletePaymentReopensInvoice(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 1000)
	ctx := context.Background()

	inv, err := svc.ConvertQuote(ctx, convertReq(ModeFull))
	require.NoError(t, err)
	payment, err := svc.RecordPayment(ctx, RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: 1000, PaidAt: svcNow, Method: "card",
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	require.NoError(t, svc.DeletePayment(ctx, payment.ID))

	got, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	assert.Zero(t, got.PaidAmount)
}

func TestGetDerivesOverdue(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 1000)
	ctx := context.Background()

	inv, err := svc.ConvertQuote(ctx, convertReq(ModeFull))
	require.NoError(t, err)

	svc.now = func() time.Time { return inv.DueDate.AddDate(0, 0, 5) }
	got, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, got.Status)
	// The stored status is untouched; the scan job persists it separately.
	assert.Equal(t, StatusSent, repo.invoices[inv.ID].Status)
}

func TestCancelRefusedWithPayments(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	seedAcceptedQuote(repo, 1000)
	ctx := context.Background()

	inv, err := svc.ConvertQuote(ctx, convertReq(ModeFull))
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: 100, PaidAt: svcNow, Method: "card",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, inv.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestVATSummaryReconciles(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInvoiceRequest{
		CompanyID: 1, ClientID: 10, Currency: "EUR",
		IssueDate: svcNow, DueDate: svcNow.AddDate(0, 0, 30),
		Lines: []CreateInvoiceLineReq{
			{Description: "Conseil", Quantity: 1, UnitPrice: 1000, VATRate: 20},
			{Description: "Hébergement", Quantity: 1, UnitPrice: 500, VATRate: 7},
		},
	})
	require.NoError(t, err)
	// Drafts are excluded until sent.
	summary, err := svc.VATSummary(ctx, VATSummaryRequest{CompanyID: 1, DateFrom: svcNow.AddDate(0, -1, 0), DateTo: svcNow.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.Zero(t, summary.VATTotal)

	for id := range repo.invoices {
		_, err = svc.Send(ctx, id)
		require.NoError(t, err)
	}

	summary, err = svc.VATSummary(ctx, VATSummaryRequest{CompanyID: 1, DateFrom: svcNow.AddDate(0, -1, 0), DateTo: svcNow.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, summary.BaseTotal, 0.001)
	assert.InDelta(t, 235.0, summary.VATTotal, 0.001)
	assert.InDelta(t, 200.0, summary.ByRate["20"], 0.001)
	assert.InDelta(t, 35.0, summary.ByRate["7"], 0.001)
}

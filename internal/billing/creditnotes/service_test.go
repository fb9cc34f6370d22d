package creditnotes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio/internal/billing/invoices"
	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/billing/vat"
)

// ============================================================================
// MOCK REPOSITORIES
// ============================================================================

type mockRepository struct {
	notes       map[int64]*CreditNote
	nextID      int64
	docCounters map[int64]int
	invRepo     *mockInvoiceRepo

	// updateStatusErr fails the next UpdateStatus call once, to exercise
	// the rollback path.
	updateStatusErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		notes:       make(map[int64]*CreditNote),
		docCounters: make(map[int64]int),
		nextID:      1,
	}
}

// WithTx emulates transactional behavior: both stores are snapshotted up
// front and restored when the callback fails.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository, invoices.Repository) error) error {
	notesBefore := make(map[int64]*CreditNote, len(m.notes))
	for id, n := range m.notes {
		copied := *n
		notesBefore[id] = &copied
	}
	invoicesBefore := make(map[int64]*invoices.Invoice, len(m.invRepo.invoices))
	for id, inv := range m.invRepo.invoices {
		copied := *inv
		invoicesBefore[id] = &copied
	}
	if err := fn(ctx, m, m.invRepo); err != nil {
		m.notes = notesBefore
		m.invRepo.invoices = invoicesBefore
		return err
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*CreditNote, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, req ListCreditNotesRequest) ([]CreditNote, int, error) {
	var result []CreditNote
	for _, n := range m.notes {
		if n.CompanyID == req.CompanyID {
			result = append(result, *n)
		}
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, note CreditNote) (int64, error) {
	id := m.nextID
	m.nextID++
	note.ID = id
	m.notes[id] = &note
	return id, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status CreditNoteStatus, remaining float64) error {
	if m.updateStatusErr != nil {
		err := m.updateStatusErr
		m.updateStatusErr = nil
		return err
	}
	n, ok := m.notes[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = status
	n.RemainingAmount = remaining
	return nil
}

func (m *mockRepository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	m.docCounters[companyID]++
	return fmt.Sprintf("AV-%d-%04d", date.Year(), m.docCounters[companyID]), nil
}

// mockInvoiceRepo backs a real invoices.Service with just enough behavior
// for the credit flows; everything else fails loudly.
type mockInvoiceRepo struct {
	invoices map[int64]*invoices.Invoice
}

var errNotImplemented = errors.New("not implemented in test double")

func (m *mockInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, invoices.Repository) error) error {
	return fn(ctx, m)
}

func (m *mockInvoiceRepo) Get(ctx context.Context, id int64) (*invoices.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, invoices.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *mockInvoiceRepo) SetPaid(ctx context.Context, id int64, paid float64, status invoices.InvoiceStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return invoices.ErrNotFound
	}
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, req invoices.ListInvoicesRequest) ([]invoices.Invoice, int, error) {
	return nil, 0, errNotImplemented
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv invoices.Invoice) (int64, error) {
	return 0, errNotImplemented
}

func (m *mockInvoiceRepo) InsertLine(ctx context.Context, line invoices.InvoiceLine) (int64, error) {
	return 0, errNotImplemented
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, id int64, status invoices.InvoiceStatus) error {
	return errNotImplemented
}

func (m *mockInvoiceRepo) SetBalanceLink(ctx context.Context, depositID, balanceID int64) error {
	return errNotImplemented
}

func (m *mockInvoiceRepo) SumInvoicedForQuote(ctx context.Context, quoteID int64) (float64, error) {
	return 0, errNotImplemented
}

func (m *mockInvoiceRepo) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	return "", errNotImplemented
}

func (m *mockInvoiceRepo) GetPayment(ctx context.Context, id int64) (*invoices.Payment, error) {
	return nil, errNotImplemented
}

func (m *mockInvoiceRepo) ListPayments(ctx context.Context, invoiceID int64) ([]invoices.Payment, error) {
	return nil, errNotImplemented
}

func (m *mockInvoiceRepo) CreatePayment(ctx context.Context, p invoices.Payment) (int64, error) {
	return 0, errNotImplemented
}

func (m *mockInvoiceRepo) DeletePayment(ctx context.Context, id int64) error {
	return errNotImplemented
}

func (m *mockInvoiceRepo) GetQuote(ctx context.Context, id int64) (*quotes.Quote, error) {
	return nil, errNotImplemented
}

func (m *mockInvoiceRepo) UpdateQuoteStatus(ctx context.Context, id int64, status quotes.QuoteStatus) error {
	return errNotImplemented
}

func (m *mockInvoiceRepo) VATBaseByRate(ctx context.Context, companyID int64, from, to time.Time) ([]vat.Line, error) {
	return nil, errNotImplemented
}

// ============================================================================
// HELPERS
// ============================================================================

var testNow = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *mockRepository, *mockInvoiceRepo) {
	t.Helper()
	repo := newMockRepository()
	invRepo := &mockInvoiceRepo{invoices: map[int64]*invoices.Invoice{
		1: {
			ID:          1,
			CompanyID:   1,
			ClientID:    10,
			Status:      invoices.StatusSent,
			Currency:    "EUR",
			TotalAmount: 1200,
			DueDate:     time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	repo.invRepo = invRepo
	svc := NewService(repo, invoices.NewService(invRepo, nil))
	svc.now = func() time.Time { return testNow }
	return svc, repo, invRepo
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateCreditNote(t *testing.T) {
	svc, _, _ := newTestService(t)

	note, err := svc.Create(context.Background(), CreateCreditNoteRequest{
		InvoiceID: 1, Amount: 300, Reason: "livraison partielle",
	})
	require.NoError(t, err)

	assert.Equal(t, "AV-2026-0001", note.DocNumber)
	assert.Equal(t, StatusDraft, note.Status)
	assert.InDelta(t, 300.0, note.TotalAmount, 0.001)
	assert.InDelta(t, 300.0, note.RemainingAmount, 0.001)
	assert.Equal(t, int64(1), note.InvoiceID)
}

func TestCreateCreditNoteExceedsInvoice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateCreditNoteRequest{
		InvoiceID: 1, Amount: 5000, Reason: "erreur",
	})
	var rangeErr *invoices.ValidationRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.InDelta(t, 1200.0, rangeErr.Max, 0.001)
}

func TestApplySettlesInvoice(t *testing.T) {
	svc, _, invRepo := newTestService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateCreditNoteRequest{InvoiceID: 1, Amount: 300, Reason: "remise"})
	require.NoError(t, err)
	note, err = svc.Issue(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, note.Status)

	note, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, note.Status)
	assert.InDelta(t, 200.0, note.RemainingAmount, 0.001)
	assert.InDelta(t, 100.0, invRepo.invoices[1].PaidAmount, 0.001)
	assert.Equal(t, invoices.StatusPartial, invRepo.invoices[1].Status)

	// Zero amount applies the full remainder and closes the note.
	note, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, note.Status)
	assert.Zero(t, note.RemainingAmount)
	assert.InDelta(t, 300.0, invRepo.invoices[1].PaidAmount, 0.001)
}

func TestApplyRequiresIssued(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateCreditNoteRequest{InvoiceID: 1, Amount: 300, Reason: "remise"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyBeyondRemaining(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateCreditNoteRequest{InvoiceID: 1, Amount: 300, Reason: "remise"})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, note.ID)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{Amount: 400})
	var rangeErr *invoices.ValidationRangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestApplyCommitsNoteAndInvoiceTogether(t *testing.T) {
	svc, repo, invRepo := newTestService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateCreditNoteRequest{InvoiceID: 1, Amount: 300, Reason: "remise"})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, note.ID)
	require.NoError(t, err)

	// The note update fails after the invoice settle. Both writes must
	// roll back, otherwise a retry would credit the invoice twice.
	injected := errors.New("connection reset")
	repo.updateStatusErr = injected
	_, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{})
	require.ErrorIs(t, err, injected)

	got, err := svc.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, got.Status)
	assert.InDelta(t, 300.0, got.RemainingAmount, 0.001)
	assert.Zero(t, invRepo.invoices[1].PaidAmount)

	// The retry applies the note exactly once.
	got, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, got.Status)
	assert.InDelta(t, 300.0, invRepo.invoices[1].PaidAmount, 0.001)
	assert.Equal(t, invoices.StatusPartial, invRepo.invoices[1].Status)
}

func TestCancelPartiallyAppliedRefused(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateCreditNoteRequest{InvoiceID: 1, Amount: 300, Reason: "remise"})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, note.ID)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, note.ID, ApplyCreditNoteRequest{Amount: 100})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, note.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

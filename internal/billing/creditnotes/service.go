package creditnotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturio/facturio/internal/billing/invoices"
	"github.com/facturio/facturio/internal/billing/vat"
)

var ErrInvalidStatus = errors.New("creditnotes: invalid status transition")

// Service manages the credit note lifecycle. Applying a note settles part of
// its invoice, the same way a payment does.
type Service struct {
	repo     Repository
	invoices *invoices.Service
	now      func() time.Time
}

func NewService(repo Repository, invoiceSvc *invoices.Service) *Service {
	return &Service{repo: repo, invoices: invoiceSvc, now: time.Now}
}

// Create drafts a credit note against an invoice. The amount may not exceed
// what the invoice bills.
func (s *Service) Create(ctx context.Context, req CreateCreditNoteRequest) (*CreditNote, error) {
	inv, err := s.invoices.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == invoices.StatusDraft || inv.Status == invoices.StatusCancelled {
		return nil, fmt.Errorf("%w: cannot credit a %s invoice", ErrInvalidStatus, inv.Status)
	}
	amount := vat.Round(req.Amount)
	if amount > inv.TotalAmount {
		return nil, &invoices.ValidationRangeError{Field: "amount", Value: amount, Min: 0, Max: inv.TotalAmount}
	}

	now := s.now()
	note := CreditNote{
		CompanyID:       inv.CompanyID,
		ClientID:        inv.ClientID,
		InvoiceID:       inv.ID,
		Status:          StatusDraft,
		Currency:        inv.Currency,
		TotalAmount:     amount,
		RemainingAmount: amount,
		Reason:          req.Reason,
		IssueDate:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var noteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository, _ invoices.Repository) error {
		note.DocNumber, err = repo.GenerateNumber(ctx, inv.CompanyID, now)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		noteID, err = repo.Create(ctx, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, noteID)
}

// Issue releases a drafted note so it can be applied.
func (s *Service) Issue(ctx context.Context, id int64) (*CreditNote, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT credit notes can be issued", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusIssued, note.RemainingAmount); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Apply settles part of the invoice from the note. A zero amount applies the
// full remainder. The note flips to APPLIED once nothing is left on it. The
// invoice settle and the note update commit in one transaction; a failure on
// either side leaves both untouched, so a retry never applies twice.
func (s *Service) Apply(ctx context.Context, id int64, req ApplyCreditNoteRequest) (*CreditNote, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository, invRepo invoices.Repository) error {
		note, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if note.Status != StatusIssued {
			return fmt.Errorf("%w: only ISSUED credit notes can be applied", ErrInvalidStatus)
		}

		amount := vat.Round(req.Amount)
		if amount == 0 {
			amount = note.RemainingAmount
		}
		if amount > note.RemainingAmount {
			return &invoices.ValidationRangeError{Field: "amount", Value: amount, Min: 0, Max: note.RemainingAmount}
		}

		if err := s.invoices.ApplyCreditIn(ctx, invRepo, note.InvoiceID, amount); err != nil {
			return err
		}

		remaining := vat.Round(note.RemainingAmount - amount)
		status := StatusIssued
		if remaining <= 0 {
			remaining = 0
			status = StatusApplied
		}
		return repo.UpdateStatus(ctx, id, status, remaining)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Cancel voids a note that has not been applied yet.
func (s *Service) Cancel(ctx context.Context, id int64) (*CreditNote, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.Status.Terminal() {
		return nil, fmt.Errorf("%w: credit note is already %s", ErrInvalidStatus, note.Status)
	}
	if note.RemainingAmount != note.TotalAmount {
		return nil, fmt.Errorf("%w: partially applied credit notes cannot be cancelled", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, note.RemainingAmount); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*CreditNote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCreditNotesRequest) ([]CreditNote, int, error) {
	return s.repo.List(ctx, req)
}

package quotes

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/facturio/facturio/internal/billing/vat"
	"github.com/facturio/facturio/internal/clients"
)

// Service coordinates the quotation lifecycle: drafting, validation,
// acceptance, expiry on read, and version chains.
type Service struct {
	repo       Repository
	clientRepo clients.Repository
	now        func() time.Time
}

func NewService(repo Repository, clientRepo clients.Repository) *Service {
	return &Service{
		repo:       repo,
		clientRepo: clientRepo,
		now:        time.Now,
	}
}

func buildLines(quoteID int64, reqs []CreateQuoteLineReq, now time.Time) []QuoteLine {
	lines := make([]QuoteLine, len(reqs))
	for i, lr := range reqs {
		order := lr.LineOrder
		if order == 0 {
			order = i + 1
		}
		lines[i] = QuoteLine{
			QuoteID:     quoteID,
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

func totalsFor(lines []QuoteLine) (subtotal, vatAmount, total float64) {
	vatLines := make([]vat.Line, len(lines))
	for i, l := range lines {
		vatLines[i] = vat.Line{Base: l.Quantity * l.UnitPrice, Rate: l.VATRate}
	}
	return vat.Totals(vatLines)
}

func (s *Service) Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	if !req.ExpiryDate.After(req.QuoteDate) {
		return nil, fmt.Errorf("quotes: expiry_date must be after quote_date")
	}

	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	now := s.now()
	lines := buildLines(0, req.Lines, now)
	subtotal, vatAmount, total := totalsFor(lines)

	quote := Quote{
		CompanyID:       req.CompanyID,
		ClientID:        req.ClientID,
		QuoteDate:       req.QuoteDate,
		ExpiryDate:      req.ExpiryDate,
		Status:          StatusDraft,
		Currency:        req.Currency,
		Subtotal:        subtotal,
		VATAmount:       vatAmount,
		TotalAmount:     total,
		Notes:           req.Notes,
		VersionNumber:   1,
		IsLatestVersion: true,
		ReminderEnabled: req.ReminderEnabled,
		ReminderDays:    req.ReminderDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var quoteID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		docNumber, err := repo.GenerateNumber(ctx, req.CompanyID, req.QuoteDate)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		quote.DocNumber = docNumber

		quoteID, err = repo.Create(ctx, quote)
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		for _, line := range lines {
			line.QuoteID = quoteID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert quote line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, quoteID)
}

// Update mutates a draft in place. Anything past draft is frozen; callers
// must spawn a new version instead.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != StatusDraft {
		return nil, &NotEditableError{QuoteID: id, Status: existing.Status}
	}

	now := s.now()
	updates := make(map[string]interface{})
	if req.QuoteDate != nil {
		updates["quote_date"] = *req.QuoteDate
	}
	if req.ExpiryDate != nil {
		updates["expiry_date"] = *req.ExpiryDate
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.ReminderEnabled != nil {
		updates["reminder_enabled"] = *req.ReminderEnabled
	}
	if req.ReminderDays != nil {
		updates["reminder_days"] = *req.ReminderDays
	}

	var linesToInsert []QuoteLine
	if req.Lines != nil {
		linesToInsert = buildLines(id, *req.Lines, now)
		subtotal, vatAmount, total := totalsFor(linesToInsert)
		updates["subtotal"] = subtotal
		updates["vat_amount"] = vatAmount
		updates["total_amount"] = total
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		if req.Lines != nil {
			if err := repo.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range linesToInsert {
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns the quote with its status derived from the clock: a quote past
// its expiry date reads as expired without any record write.
func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	quote.Status = EffectiveStatus(*quote, s.now())
	return quote, nil
}

func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	result, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for i := range result {
		result[i].Status = EffectiveStatus(result[i], now)
	}
	return result, total, nil
}

func (s *Service) transition(ctx context.Context, id int64, action Action, payload TransitionPayload) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	payload.Now = s.now()
	updated, err := Transition(*existing, action, payload)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, updated); err != nil {
		return nil, fmt.Errorf("%s quote: %w", action, err)
	}
	return s.Get(ctx, id)
}

// Submit sends a draft into validation.
func (s *Service) Submit(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, ActionSubmit, TransitionPayload{})
}

// Approve releases a validated quote to the client for acceptance.
func (s *Service) Approve(ctx context.Context, id int64, req ApproveQuoteRequest) (*Quote, error) {
	return s.transition(ctx, id, ActionApprove, TransitionPayload{ValidationNotes: req.Notes})
}

// Reject closes the quote, either at validation or after it was sent out.
func (s *Service) Reject(ctx context.Context, id int64, req RejectQuoteRequest) (*Quote, error) {
	return s.transition(ctx, id, ActionReject, TransitionPayload{RejectionReason: &req.Reason})
}

// Accept records the client's acceptance.
func (s *Service) Accept(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, ActionAccept, TransitionPayload{})
}

// CreateNewVersion freezes the current version and spawns the next one as a
// fresh draft. The whole operation, including the latest-flag flip and the
// chain integrity check, commits atomically or not at all.
func (s *Service) CreateNewVersion(ctx context.Context, id int64) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	chain, err := s.repo.ListChain(ctx, existing.ChainRootID())
	if err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	maxVersion := 0
	var currentLatest *Quote
	for i, v := range chain {
		if v.VersionNumber > maxVersion {
			maxVersion = v.VersionNumber
		}
		if v.IsLatestVersion {
			currentLatest = &chain[i]
		}
	}
	if currentLatest == nil {
		return nil, &ChainIntegrityError{RootID: existing.ChainRootID(), Detail: "no latest version"}
	}

	clone, err := NextVersion(*existing, maxVersion, s.now())
	if err != nil {
		return nil, err
	}

	var cloneID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		docNumber, err := repo.GenerateNumber(ctx, clone.CompanyID, clone.QuoteDate)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		clone.DocNumber = docNumber

		if err := repo.SetLatest(ctx, currentLatest.ID, false); err != nil {
			return fmt.Errorf("clear latest flag: %w", err)
		}

		cloneID, err = repo.Create(ctx, clone)
		if err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		for _, line := range clone.Lines {
			line.QuoteID = cloneID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert version line: %w", err)
			}
		}

		updatedChain, err := repo.ListChain(ctx, clone.ChainRootID())
		if err != nil {
			return fmt.Errorf("reload chain: %w", err)
		}
		return VerifyChain(updatedChain)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, cloneID)
}

// ListChain returns every version sharing the quote's chain root, newest
// first.
func (s *Service) ListChain(ctx context.Context, id int64) ([]Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.repo.ListChain(ctx, quote.ChainRootID())
	if err != nil {
		return nil, err
	}
	return slices.Collect(Descending(chain)), nil
}

package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/platform/httpx"
	"github.com/facturio/facturio/internal/shared"
)

// Handler exposes invoicing, quote conversion and payments over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	reports  *ReportCache
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, reports *ReportCache) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		reports:  reports,
		validate: validator.New(),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var overErr *OverConversionError
	var rangeErr *ValidationRangeError
	var transitionErr *quotes.InvalidTransitionError
	switch {
	case errors.As(err, &overErr):
		httpx.Problem(w, http.StatusConflict, "Over-Conversion", overErr.Error())
	case errors.As(err, &rangeErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Value Out Of Range", rangeErr.Error())
	case errors.As(err, &transitionErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", transitionErr.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this conversion was already processed")
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrNothingToInvoice),
		errors.Is(err, ErrBalanceAlreadyBilled):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	case errors.Is(err, ErrPaymentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payment not found")
	case errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) invoiceID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	req := ListInvoicesRequest{
		CompanyID:   companyID,
		OverdueOnly: r.URL.Query().Get("overdue_only") == "true",
		Limit:       50,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := InvoiceStatus(status)
		req.Status = &s
	}
	if clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64); err == nil {
		req.ClientID = &clientID
	}
	if quoteID, err := strconv.ParseInt(r.URL.Query().Get("quote_id"), 10, 64); err == nil {
		req.QuoteID = &quoteID
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		req.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		req.Offset = offset
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": result, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := h.invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.ConvertQuote(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.reports.Bust(r.Context(), inv.CompanyID)
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	id, err := h.invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req CreateBalanceInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.CreateBalanceInvoice(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.reports.Bust(r.Context(), inv.CompanyID)
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.runStatusChange(w, r, h.service.Send)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runStatusChange(w, r, h.service.Cancel)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := h.invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.InvoiceID = id
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := h.invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	if err := h.service.DeletePayment(r.Context(), paymentID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VATSummary(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	req := VATSummaryRequest{CompanyID: companyID}
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("date_from")); err == nil {
		req.DateFrom = from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("date_to")); err == nil {
		req.DateTo = to
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	summary, err := h.reports.VATSummary(r.Context(), req, h.service.VATSummary)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) runStatusChange(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*Invoice, error)) {
	id, err := h.invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	// Sending or cancelling moves the invoice's bases in or out of the
	// VAT summary.
	h.reports.Bust(r.Context(), inv.CompanyID)
	httpx.JSON(w, http.StatusOK, inv)
}

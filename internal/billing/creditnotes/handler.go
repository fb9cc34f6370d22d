package creditnotes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facturio/facturio/internal/billing/invoices"
	"github.com/facturio/facturio/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var rangeErr *invoices.ValidationRangeError
	switch {
	case errors.As(err, &rangeErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Value Out Of Range", rangeErr.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, invoices.ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "credit note not found")
	case errors.Is(err, invoices.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	default:
		h.logger.Error("credit note request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) noteID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	req := ListCreditNotesRequest{CompanyID: companyID, Limit: 50}
	if status := r.URL.Query().Get("status"); status != "" {
		s := CreditNoteStatus(status)
		req.Status = &s
	}
	if invoiceID, err := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64); err == nil {
		req.InvoiceID = &invoiceID
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
	httpx.JSON(w, http.StatusOK, map[string]any{"credit_notes": result, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := h.noteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid credit note id")
		return
	}
	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	h.runStatusChange(w, r, h.service.Issue)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runStatusChange(w, r, h.service.Cancel)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := h.noteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid credit note id")
		return
	}
	var req ApplyCreditNoteRequest
	// Empty body applies the full remainder.
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.Apply(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) runStatusChange(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*CreditNote, error)) {
	id, err := h.noteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid credit note id")
		return
	}
	note, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

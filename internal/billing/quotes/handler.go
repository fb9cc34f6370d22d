package quotes

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facturio/facturio/internal/platform/httpx"
)

// Handler exposes the quote lifecycle over JSON.
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
	var transitionErr *InvalidTransitionError
	var notEditableErr *NotEditableError
	var chainErr *ChainIntegrityError
	switch {
	case errors.As(err, &transitionErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", transitionErr.Error())
	case errors.As(err, &notEditableErr):
		httpx.Problem(w, http.StatusConflict, "Not Editable", notEditableErr.Error())
	case errors.As(err, &chainErr):
		h.logger.Error("quote chain integrity violated", slog.Any("error", chainErr))
		httpx.Problem(w, http.StatusInternalServerError, "Chain Integrity", "")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
	default:
		h.logger.Error("quote request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) quoteID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	req := ListQuotesRequest{
		CompanyID:  companyID,
		LatestOnly: r.URL.Query().Get("latest_only") == "true",
		Limit:      50,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := QuoteStatus(status)
		req.Status = &s
	}
	if clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64); err == nil {
		req.ClientID = &clientID
	}
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("date_from")); err == nil {
		req.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("date_to")); err == nil {
		req.DateTo = &to
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
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": result, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := h.quoteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quote, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := h.quoteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quote, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(id int64) (*Quote, error) {
		return h.service.Submit(r.Context(), id)
	})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveQuoteRequest
	// Approval notes are optional; an empty body is fine.
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	h.runTransition(w, r, func(id int64) (*Quote, error) {
		return h.service.Approve(r.Context(), id, req)
	})
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.runTransition(w, r, func(id int64) (*Quote, error) {
		return h.service.Reject(r.Context(), id, req)
	})
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(id int64) (*Quote, error) {
		return h.service.Accept(r.Context(), id)
	})
}

func (h *Handler) NewVersion(w http.ResponseWriter, r *http.Request) {
	id, err := h.quoteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	quote, err := h.service.CreateNewVersion(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := h.quoteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	versions, err := h.service.ListChain(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(int64) (*Quote, error)) {
	id, err := h.quoteID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	quote, err := fn(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

package quotes

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (chi.Router, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, newTestService(repo))

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, repo
}

func doJSON(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateQuoteEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{
		"company_id": 1,
		"client_id": 10,
		"quote_date": "2026-03-01T00:00:00Z",
		"expiry_date": "2026-06-01T00:00:00Z",
		"currency": "EUR",
		"lines": [
			{"description": "Site vitrine", "quantity": 1, "unit_price": 1000, "vat_rate": 20}
		]
	}`
	rr := doJSON(t, router, http.MethodPost, "/quotes", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var quote Quote
	if err := json.Unmarshal(rr.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if quote.DocNumber != "DEV-2026-0001" {
		t.Fatalf("doc number = %q, want DEV-2026-0001", quote.DocNumber)
	}
	if quote.Status != StatusDraft {
		t.Fatalf("status = %s, want %s", quote.Status, StatusDraft)
	}
	if quote.TotalAmount != 1200 {
		t.Fatalf("total = %v, want 1200", quote.TotalAmount)
	}
}

func TestCreateQuoteEndpointRejectsBadBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/quotes", `{"company_id": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	// Missing lines fails validation, not JSON decoding.
	rr = doJSON(t, router, http.MethodPost, "/quotes", `{"company_id": 1, "client_id": 10}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestShowQuoteEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/quotes/999", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestQuoteLifecycleEndpoints(t *testing.T) {
	router, repo := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/quotes", `{
		"company_id": 1,
		"client_id": 10,
		"quote_date": "2026-03-01T00:00:00Z",
		"expiry_date": "2026-06-01T00:00:00Z",
		"currency": "EUR",
		"lines": [{"description": "Audit", "quantity": 1, "unit_price": 800, "vat_rate": 20}]
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var quote Quote
	if err := json.Unmarshal(rr.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	base := fmt.Sprintf("/quotes/%d", quote.ID)

	// Accepting straight from draft is a transition conflict.
	rr = doJSON(t, router, http.MethodPost, base+"/accept", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("accept draft: expected 409, got %d", rr.Code)
	}

	for _, step := range []string{"/submit", "/approve", "/accept"} {
		rr = doJSON(t, router, http.MethodPost, base+step, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", step, rr.Code, rr.Body.String())
		}
	}

	if got := repo.quotes[quote.ID].Status; got != StatusAccepted {
		t.Fatalf("stored status = %s, want %s", got, StatusAccepted)
	}
}

func TestRejectEndpointRequiresReason(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/quotes", `{
		"company_id": 1,
		"client_id": 10,
		"quote_date": "2026-03-01T00:00:00Z",
		"expiry_date": "2026-06-01T00:00:00Z",
		"currency": "EUR",
		"lines": [{"description": "Audit", "quantity": 1, "unit_price": 800, "vat_rate": 20}]
	}`)
	var quote Quote
	if err := json.Unmarshal(rr.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	base := fmt.Sprintf("/quotes/%d", quote.ID)

	for _, step := range []string{"/submit", "/approve"} {
		if rr := doJSON(t, router, http.MethodPost, base+step, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", step, rr.Code)
		}
	}

	rr = doJSON(t, router, http.MethodPost, base+"/reject", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reject without reason: expected 400, got %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, base+"/reject", `{"reason": "budget refusé"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client), mr
}

func summaryRequest(companyID int64) VATSummaryRequest {
	return VATSummaryRequest{
		CompanyID: companyID,
		DateFrom:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestReportCacheBuildsOnceWithinTTL(t *testing.T) {
	cache, _ := newTestReportCache(t)
	ctx := context.Background()
	req := summaryRequest(1)

	builds := 0
	build := func(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
		builds++
		return &VATSummary{
			CompanyID: req.CompanyID,
			DateFrom:  req.DateFrom,
			DateTo:    req.DateTo,
			ByRate:    map[string]float64{"20": 200},
			VATTotal:  200,
			BaseTotal: 1000,
		}, nil
	}

	first, err := cache.VATSummary(ctx, req, build)
	require.NoError(t, err)
	second, err := cache.VATSummary(ctx, req, build)
	require.NoError(t, err)

	assert.Equal(t, 1, builds)
	assert.Equal(t, first.VATTotal, second.VATTotal)
	assert.Equal(t, first.ByRate, second.ByRate)
}

func TestReportCacheKeyedByPeriodAndCompany(t *testing.T) {
	cache, _ := newTestReportCache(t)
	ctx := context.Background()

	builds := 0
	build := func(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
		builds++
		return &VATSummary{CompanyID: req.CompanyID, ByRate: map[string]float64{}}, nil
	}

	_, err := cache.VATSummary(ctx, summaryRequest(1), build)
	require.NoError(t, err)
	_, err = cache.VATSummary(ctx, summaryRequest(2), build)
	require.NoError(t, err)

	other := summaryRequest(1)
	other.DateTo = other.DateTo.AddDate(0, 1, 0)
	_, err = cache.VATSummary(ctx, other, build)
	require.NoError(t, err)

	assert.Equal(t, 3, builds)
}

func TestReportCacheBustDropsCompanyEntries(t *testing.T) {
	cache, _ := newTestReportCache(t)
	ctx := context.Background()

	builds := map[int64]int{}
	build := func(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
		builds[req.CompanyID]++
		return &VATSummary{CompanyID: req.CompanyID, ByRate: map[string]float64{}}, nil
	}

	_, err := cache.VATSummary(ctx, summaryRequest(1), build)
	require.NoError(t, err)
	_, err = cache.VATSummary(ctx, summaryRequest(2), build)
	require.NoError(t, err)

	cache.Bust(ctx, 1)

	_, err = cache.VATSummary(ctx, summaryRequest(1), build)
	require.NoError(t, err)
	_, err = cache.VATSummary(ctx, summaryRequest(2), build)
	require.NoError(t, err)

	assert.Equal(t, 2, builds[1], "busted company rebuilds")
	assert.Equal(t, 1, builds[2], "other company stays cached")
}

func TestReportCacheNilDegradesToDirectBuild(t *testing.T) {
	var cache *ReportCache
	builds := 0
	build := func(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
		builds++
		return &VATSummary{}, nil
	}

	_, err := cache.VATSummary(context.Background(), summaryRequest(1), build)
	require.NoError(t, err)
	_, err = cache.VATSummary(context.Background(), summaryRequest(1), build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
}

func TestSendBustsCachedSummary(t *testing.T) {
	cache, _ := newTestReportCache(t)
	repo := newMockRepository()
	svc := newTestService(repo)
	h := NewHandler(slog.Default(), svc, cache)
	ctx := context.Background()

	inv, err := svc.Create(ctx, CreateInvoiceRequest{
		CompanyID: 1, ClientID: 10, Currency: "EUR",
		IssueDate: svcNow, DueDate: svcNow.AddDate(0, 0, 30),
		Lines: []CreateInvoiceLineReq{
			{Description: "Conseil", Quantity: 1, UnitPrice: 1000, VATRate: 20},
		},
	})
	require.NoError(t, err)

	period := VATSummaryRequest{CompanyID: 1, DateFrom: svcNow.AddDate(0, -1, 0), DateTo: svcNow.AddDate(0, 1, 0)}
	before, err := cache.VATSummary(ctx, period, svc.VATSummary)
	require.NoError(t, err)
	assert.Zero(t, before.VATTotal, "draft excluded")

	// Sending through the handler must drop the cached zero summary.
	r := httptest.NewRequest(http.MethodPost, "/invoices/"+strconv.FormatInt(inv.ID, 10)+"/send", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", strconv.FormatInt(inv.ID, 10))
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h.Send(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	after, err := cache.VATSummary(ctx, period, svc.VATSummary)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, after.VATTotal, 0.001)
}

func TestReportCacheExpiry(t *testing.T) {
	cache, mr := newTestReportCache(t)
	ctx := context.Background()
	req := summaryRequest(1)

	builds := 0
	build := func(ctx context.Context, req VATSummaryRequest) (*VATSummary, error) {
		builds++
		return &VATSummary{CompanyID: req.CompanyID, ByRate: map[string]float64{}}, nil
	}

	_, err := cache.VATSummary(ctx, req, build)
	require.NoError(t, err)

	mr.FastForward(reportCacheTTL + time.Second)

	_, err = cache.VATSummary(ctx, req, build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
}

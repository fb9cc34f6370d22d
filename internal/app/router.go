package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facturio/facturio/internal/billing/creditnotes"
	"github.com/facturio/facturio/internal/billing/invoices"
	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/clients"
	"github.com/facturio/facturio/internal/masterdata/vatrates"
	"github.com/facturio/facturio/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Pool               *pgxpool.Pool
	QuotesHandler      *quotes.Handler
	InvoicesHandler    *invoices.Handler
	CreditNotesHandler *creditnotes.Handler
	ClientsHandler     *clients.Handler
	VATRatesHandler    *vatrates.Handler
	JobsHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Facturio defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("health check db ping", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if params.ClientsHandler != nil {
			params.ClientsHandler.MountRoutes(api)
		}
		if params.QuotesHandler != nil {
			params.QuotesHandler.MountRoutes(api)
		}
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(api)
		}
		if params.CreditNotesHandler != nil {
			params.CreditNotesHandler.MountRoutes(api)
		}
		if params.VATRatesHandler != nil {
			params.VATRatesHandler.MountRoutes(api)
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobsHandler.MountRoutes(jr)
		})
	}

	return r
}

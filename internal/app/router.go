package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	analytichttp "github.com/reparto-app/reparto/internal/analytics/http"
	"github.com/reparto-app/reparto/internal/auth"
	"github.com/reparto-app/reparto/internal/catalog"
	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/delivery"
	"github.com/reparto-app/reparto/internal/notify"
	"github.com/reparto-app/reparto/internal/orders"
	"github.com/reparto-app/reparto/internal/sales"
	"github.com/reparto-app/reparto/internal/shared"
	"github.com/reparto-app/reparto/internal/stream"
	"github.com/reparto-app/reparto/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CustomersHandler *customers.Handler
	SalesHandler     *sales.Handler
	DeliveryHandler  *delivery.Handler
	OrdersHandler    *orders.Handler
	NotifyHandler    *notify.Handler
	AnalyticsHandler *analytichttp.Handler
	StreamHandler    *stream.Handler
	JobHandler       *jobs.Handler

	// TokenAuth resolves the {token} path parameter into a customer.
	TokenAuth func(http.Handler) http.Handler
}

// NewRouter constructs the chi.Router with Reparto defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Admin API, guarded by the Redis-backed session.
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAdmin(params.Logger))

		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/sales", func(r chi.Router) {
			params.SalesHandler.MountRoutes(r)
			r.Route("/{saleID}/route", params.DeliveryHandler.MountAdminRoutes)
		})
		if params.AnalyticsHandler != nil {
			r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
		}
		if params.StreamHandler != nil {
			r.Route("/stream", params.StreamHandler.MountRoutes)
		}
	})

	// Customer API, authenticated purely by the opaque access token.
	r.Route("/customer/{token}", func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(tokenRateKey)))
		r.Use(params.TokenAuth)

		params.OrdersHandler.MountCustomerRoutes(r)
		params.DeliveryHandler.MountCustomerRoutes(r)
		params.NotifyHandler.MountCustomerRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

// tokenRateKey buckets customer requests per access token so one noisy
// client cannot exhaust the shared IP budget of a building.
func tokenRateKey(r *http.Request) (string, error) {
	if token := chi.URLParam(r, "token"); token != "" {
		return token, nil
	}
	return httprate.KeyByIP(r)
}

package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khatabill/khatabill-backend/api/controllers"
	"github.com/khatabill/khatabill-backend/api/middleware"
	"github.com/khatabill/khatabill-backend/internal/customers"
	"github.com/khatabill/khatabill-backend/internal/dashboard"
	"github.com/khatabill/khatabill-backend/internal/inventory"
	"github.com/khatabill/khatabill-backend/internal/invoices"
	"github.com/khatabill/khatabill-backend/internal/ledger"
	"github.com/khatabill/khatabill-backend/internal/subscriptions"
	"github.com/khatabill/khatabill-backend/pkg/config"
	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/logger"
	pkgredis "github.com/khatabill/khatabill-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Engine        controllers.InvoicePoster
	Invoices      invoices.Service
	Ledger        ledger.Service
	Inventory     inventory.Service
	Customers     customers.Service
	Subscriptions subscriptions.Service
	Dashboard     dashboard.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	places := int32(cfg.Billing.AmountPlaces)

	var (
		idempotent = func(next http.Handler) http.Handler { return next }
		writeLimit = func(next http.Handler) http.Handler { return next }
	)
	if redisClient != nil {
		idempotent = middleware.Idempotency(redisClient, logg)
		writeLimit = middleware.RateLimit(middleware.NewRateLimitPolicy(
			"writes",
			cfg.RateLimit.Window,
			cfg.RateLimit.WriteLimit,
			cfg.RateLimit.PerIPLimit,
		), redisClient, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(writeLimit, idempotent).Post("/invoices", controllers.PostInvoice(svc.Engine, places, logg))
		r.Get("/invoices", controllers.ListInvoices(svc.Invoices, places, logg))
		r.Get("/invoices/{number}", controllers.GetInvoice(svc.Invoices, places, logg))

		r.Get("/ledger/balances", controllers.LedgerBalances(svc.Ledger, places, logg))
		r.Get("/ledger/customers/{customerId}/balance", controllers.LedgerCustomerBalance(svc.Ledger, places, logg))
		r.Get("/ledger/customers/{customerId}/history", controllers.LedgerCustomerHistory(svc.Ledger, places, logg))
		r.With(writeLimit, idempotent).Post("/ledger/payments", controllers.RecordPayment(svc.Ledger, places, logg))

		r.With(writeLimit).Post("/catalog/items", controllers.CreateCatalogItem(svc.Inventory, logg))
		r.With(writeLimit).Put("/catalog/items/{itemId}/stock", controllers.SetCatalogStock(svc.Inventory, logg))
		r.With(writeLimit).Post("/catalog/items/{itemId}/restock", controllers.RestockCatalogItem(svc.Inventory, logg))
		r.Get("/catalog/low-stock", controllers.LowStock(svc.Inventory, logg))

		r.With(writeLimit).Post("/customers", controllers.CreateCustomer(svc.Customers, logg))
		r.Get("/customers/{customerId}", controllers.GetCustomer(svc.Customers, logg))

		r.Get("/subscription", controllers.SubscriptionPlan(svc.Subscriptions, logg))
		r.Get("/subscription/quota", controllers.SubscriptionQuota(svc.Subscriptions, logg))

		r.Get("/dashboard", controllers.DashboardSummary(svc.Dashboard, places, logg))
	})

	return r
}

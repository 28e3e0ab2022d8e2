package routes

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/khatabill/khatabill-backend/internal/customers"
	"github.com/khatabill/khatabill-backend/internal/dashboard"
	"github.com/khatabill/khatabill-backend/internal/inventory"
	"github.com/khatabill/khatabill-backend/internal/invoices"
	"github.com/khatabill/khatabill-backend/internal/ledger"
	"github.com/khatabill/khatabill-backend/internal/numbering"
	"github.com/khatabill/khatabill-backend/internal/subscriptions"
	"github.com/khatabill/khatabill-backend/pkg/config"
	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/logger"
	"github.com/khatabill/khatabill-backend/pkg/metrics"
	"github.com/khatabill/khatabill-backend/pkg/outbox"
)

// NewServices wires the billing services over one database client. now may
// be nil; reg may be nil to skip metrics registration.
func NewServices(client *db.Client, cfg config.BillingConfig, logg *logger.Logger, reg prometheus.Registerer, now func() time.Time) (Services, error) {
	if client == nil {
		return Services{}, fmt.Errorf("database client required")
	}
	if now == nil {
		now = time.Now
	}
	conn := client.DB()

	customerRepo := customers.NewRepository(conn)
	inventoryRepo := inventory.NewRepository(conn)
	invoiceRepo := invoices.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	customerSvc, err := customers.NewService(customerRepo, client)
	if err != nil {
		return Services{}, err
	}
	inventorySvc, err := inventory.NewService(inventoryRepo, client)
	if err != nil {
		return Services{}, err
	}
	plans, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:             subscriptions.NewRepository(conn),
		TxRunner:         client,
		FreeInvoiceQuota: cfg.FreeInvoiceQuota,
		Now:              now,
	})
	if err != nil {
		return Services{}, err
	}
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:      ledger.NewRepository(conn),
		Customers: customerRepo,
		TxRunner:  client,
		Outbox:    emitter,
		Now:       now,
	})
	if err != nil {
		return Services{}, err
	}
	engine, err := invoices.NewEngine(invoices.EngineParams{
		TxRunner:  client,
		Invoices:  invoiceRepo,
		Customers: customerRepo,
		Inventory: inventoryRepo,
		Numbering: numbering.NewAuthority(),
		Gate:      plans,
		Ledger:    ledgerSvc,
		Outbox:    emitter,
		Metrics:   metrics.NewInvoiceMetrics(reg),
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return Services{}, err
	}
	invoiceReads, err := invoices.NewService(invoiceRepo, customerRepo, client)
	if err != nil {
		return Services{}, err
	}
	dash, err := dashboard.NewService(client, now)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Engine:        engine,
		Invoices:      invoiceReads,
		Ledger:        ledgerSvc,
		Inventory:     inventorySvc,
		Customers:     customerSvc,
		Subscriptions: plans,
		Dashboard:     dash,
	}, nil
}

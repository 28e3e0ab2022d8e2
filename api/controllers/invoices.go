package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khatabill/khatabill-backend/api/responses"
	"github.com/khatabill/khatabill-backend/api/validators"
	"github.com/khatabill/khatabill-backend/internal/invoices"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/logger"
	"github.com/khatabill/khatabill-backend/pkg/pagination"
)

// InvoicePoster commits a draft as a numbered invoice.
type InvoicePoster interface {
	Post(ctx context.Context, shopOwnerID uuid.UUID, draft invoices.Draft) (*models.Invoice, error)
}

type invoiceLineRequest struct {
	CatalogItemID *uuid.UUID      `json:"catalog_item_id,omitempty"`
	Name          string          `json:"name" validate:"required,max=200"`
	HSNCode       string          `json:"hsn_code,omitempty" validate:"max=16"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity      int             `json:"quantity" validate:"min=1"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	GSTRate       decimal.Decimal `json:"gst_rate" validate:"gte=0,lte=100"`
}

type postInvoiceRequest struct {
	CustomerID    uuid.UUID            `json:"customer_id"`
	PaymentMethod string               `json:"payment_method" validate:"required"`
	Discount      decimal.Decimal      `json:"discount" validate:"gte=0"`
	Lines         []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
	Subtotal      *decimal.Decimal     `json:"subtotal,omitempty"`
	GrandTotal    *decimal.Decimal     `json:"grand_total,omitempty"`
}

func (r postInvoiceRequest) toDraft() (invoices.Draft, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return invoices.Draft{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]string{"payment_method": "must be one of CASH UPI CREDIT"})
	}
	draft := invoices.Draft{
		CustomerID:    r.CustomerID,
		PaymentMethod: method,
		Discount:      r.Discount,
		Lines:         make([]invoices.DraftLine, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		draft.Lines = append(draft.Lines, invoices.DraftLine{
			CatalogItemID: line.CatalogItemID,
			Name:          validators.SanitizeString(line.Name, 200),
			HSNCode:       strings.TrimSpace(line.HSNCode),
			UnitPrice:     line.UnitPrice,
			Quantity:      line.Quantity,
			Discount:      line.Discount,
			GSTRate:       line.GSTRate,
		})
	}
	if r.Subtotal != nil || r.GrandTotal != nil {
		draft.Claimed = &invoices.ClaimedTotals{Subtotal: r.Subtotal, GrandTotal: r.GrandTotal}
	}
	return draft, nil
}

// PostInvoice validates and commits a sale. The response always carries the
// server-computed totals.
func PostInvoice(engine InvoicePoster, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("invoice engine"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body postInvoiceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := body.toDraft()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := engine.Post(r.Context(), shopOwnerID, draft)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newInvoiceView(invoice, places))
	}
}

type invoiceListResponse struct {
	Invoices   []invoiceView `json:"invoices"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListInvoices returns invoice headers newest first.
func ListInvoices(svc invoices.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("invoice service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), shopOwnerID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := invoiceListResponse{Invoices: make([]invoiceView, 0, len(page.Invoices)), NextCursor: page.NextCursor}
		for i := range page.Invoices {
			resp.Invoices = append(resp.Invoices, newInvoiceView(&page.Invoices[i], places))
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetInvoice returns one invoice with its lines and customer contact.
func GetInvoice(svc invoices.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("invoice service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		number := strings.TrimSpace(chi.URLParam(r, "number"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invoice number required"))
			return
		}

		detail, err := svc.GetByNumber(r.Context(), shopOwnerID, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceDetailView(detail, places))
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/khatabill/khatabill-backend/api/responses"
	"github.com/khatabill/khatabill-backend/api/validators"
	"github.com/khatabill/khatabill-backend/internal/inventory"
	"github.com/khatabill/khatabill-backend/pkg/logger"
)

type createCatalogItemRequest struct {
	Name              string          `json:"name" validate:"required,max=200"`
	HSNCode           string          `json:"hsn_code,omitempty" validate:"max=16"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	GSTRate           decimal.Decimal `json:"gst_rate" validate:"gte=0,lte=100"`
	StockQty          int             `json:"stock_qty" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
}

// CreateCatalogItem adds a sellable item with its opening stock.
func CreateCatalogItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("inventory service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createCatalogItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), shopOwnerID, inventory.CreateItemInput{
			Name:              validators.SanitizeString(body.Name, 200),
			HSNCode:           strings.TrimSpace(body.HSNCode),
			Price:             body.Price,
			GSTRate:           body.GSTRate,
			StockQty:          body.StockQty,
			LowStockThreshold: body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newCatalogItemView(item))
	}
}

type setStockRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// SetCatalogStock overwrites the on-hand count after a physical stock take.
func SetCatalogStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("inventory service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.SetStock(r.Context(), shopOwnerID, itemID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCatalogItemView(item))
	}
}

// RestockCatalogItem adds received goods to the on-hand count.
func RestockCatalogItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("inventory service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body restockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Restock(r.Context(), shopOwnerID, itemID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCatalogItemView(item))
	}
}

// LowStock lists items at or below their threshold.
func LowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("inventory service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListLowStock(r.Context(), shopOwnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]catalogItemView, 0, len(items))
		for i := range items {
			out = append(out, newCatalogItemView(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

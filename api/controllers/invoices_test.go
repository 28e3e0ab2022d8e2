package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatabill/khatabill-backend/api/middleware"
	"github.com/khatabill/khatabill-backend/internal/invoices"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

type stubPoster struct {
	shop  uuid.UUID
	draft invoices.Draft
	err   error
}

func (s *stubPoster) Post(_ context.Context, shopOwnerID uuid.UUID, draft invoices.Draft) (*models.Invoice, error) {
	s.shop = shopOwnerID
	s.draft = draft
	if s.err != nil {
		return nil, s.err
	}
	return &models.Invoice{
		ID:            uuid.New(),
		Number:        "20261018-0007",
		IssuedAt:      time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		CustomerID:    draft.CustomerID,
		PaymentMethod: draft.PaymentMethod,
		Subtotal:      decimal.RequireFromString("30"),
		CGST:          decimal.RequireFromString("0.8333333"),
		SGST:          decimal.RequireFromString("0.8333333"),
		GrandTotal:    decimal.RequireFromString("31.6666666"),
	}, nil
}

func postRequest(shop uuid.UUID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(body))
	if shop != uuid.Nil {
		req = req.WithContext(middleware.WithShopOwnerID(req.Context(), shop))
	}
	return req
}

func TestPostInvoiceMapsDraft(t *testing.T) {
	poster := &stubPoster{}
	shop := uuid.New()
	customer := uuid.New()
	item := uuid.New()
	body := `{
		"customer_id": "` + customer.String() + `",
		"payment_method": "upi",
		"discount": "1.5",
		"subtotal": "30",
		"lines": [
			{"catalog_item_id": "` + item.String() + `", "name": "  Pen ", "unit_price": "10", "quantity": 3, "gst_rate": "5.5"}
		]
	}`

	resp := httptest.NewRecorder()
	PostInvoice(poster, 2, nil).ServeHTTP(resp, postRequest(shop, body))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	assert.Equal(t, shop, poster.shop)
	assert.Equal(t, customer, poster.draft.CustomerID)
	assert.Equal(t, enums.PaymentMethodUPI, poster.draft.PaymentMethod)
	assert.True(t, poster.draft.Discount.Equal(decimal.RequireFromString("1.5")))
	require.Len(t, poster.draft.Lines, 1)
	line := poster.draft.Lines[0]
	assert.Equal(t, "Pen", line.Name)
	require.NotNil(t, line.CatalogItemID)
	assert.Equal(t, item, *line.CatalogItemID)
	assert.Equal(t, 3, line.Quantity)
	require.NotNil(t, poster.draft.Claimed)
	assert.Nil(t, poster.draft.Claimed.GrandTotal)

	var envelope struct {
		Data struct {
			Number     string `json:"number"`
			CGST       string `json:"cgst"`
			GrandTotal string `json:"grand_total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "20261018-0007", envelope.Data.Number)
	assert.Equal(t, "0.83", envelope.Data.CGST)
	assert.Equal(t, "31.67", envelope.Data.GrandTotal)
}

func TestPostInvoiceWithoutClaimedTotals(t *testing.T) {
	poster := &stubPoster{}
	body := `{"customer_id":"` + uuid.NewString() + `","payment_method":"CASH","lines":[{"name":"Tea","unit_price":"5","quantity":1,"gst_rate":"0"}]}`

	resp := httptest.NewRecorder()
	PostInvoice(poster, 2, nil).ServeHTTP(resp, postRequest(uuid.New(), body))
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Nil(t, poster.draft.Claimed)
}

func TestPostInvoiceRequiresShopContext(t *testing.T) {
	resp := httptest.NewRecorder()
	PostInvoice(&stubPoster{}, 2, nil).ServeHTTP(resp, postRequest(uuid.Nil, `{}`))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestPostInvoicePassesDomainErrors(t *testing.T) {
	poster := &stubPoster{err: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "free plan limit of 10 invoices reached; upgrade to PRO")}
	body := `{"customer_id":"` + uuid.NewString() + `","payment_method":"CASH","lines":[{"name":"Tea","unit_price":"5","quantity":1,"gst_rate":"0"}]}`

	resp := httptest.NewRecorder()
	PostInvoice(poster, 2, nil).ServeHTTP(resp, postRequest(uuid.New(), body))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeQuotaExceeded))
	assert.Contains(t, resp.Body.String(), "upgrade to PRO")
}

func TestPostInvoiceRejectsUnknownPaymentMethod(t *testing.T) {
	poster := &stubPoster{}
	body := `{"customer_id":"` + uuid.NewString() + `","payment_method":"CHEQUE","lines":[{"name":"Tea","unit_price":"5","quantity":1,"gst_rate":"0"}]}`

	resp := httptest.NewRecorder()
	PostInvoice(poster, 2, nil).ServeHTTP(resp, postRequest(uuid.New(), body))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, uuid.Nil, poster.shop)
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khatabill/khatabill-backend/api/responses"
	"github.com/khatabill/khatabill-backend/api/validators"
	"github.com/khatabill/khatabill-backend/internal/ledger"
	"github.com/khatabill/khatabill-backend/internal/tax"
	"github.com/khatabill/khatabill-backend/pkg/logger"
)

type customerBalanceView struct {
	CustomerID   uuid.UUID       `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
}

// LedgerBalances lists every customer with a non-zero Udhaar balance.
func LedgerBalances(svc ledger.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balances, err := svc.GetAllBalances(r.Context(), shopOwnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]customerBalanceView, 0, len(balances))
		for _, b := range balances {
			out = append(out, customerBalanceView{
				CustomerID:   b.CustomerID,
				CustomerName: b.CustomerName,
				Balance:      tax.Round(b.Balance, places),
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// LedgerCustomerBalance returns the outstanding balance of one customer.
func LedgerCustomerBalance(svc ledger.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), shopOwnerID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customerBalanceView{CustomerID: customerID, Balance: tax.Round(balance, places)})
	}
}

// LedgerCustomerHistory returns a customer's entries, newest first.
func LedgerCustomerHistory(svc ledger.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.GetHistory(r.Context(), shopOwnerID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]ledgerEntryView, 0, len(entries))
		for _, e := range entries {
			out = append(out, newLedgerEntryView(e, places))
		}
		responses.WriteSuccess(w, out)
	}
}

type recordPaymentRequest struct {
	CustomerID  uuid.UUID       `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description,omitempty" validate:"max=500"`
}

// RecordPayment credits a customer's account when they pay back Udhaar.
func RecordPayment(svc ledger.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RecordPayment(r.Context(), shopOwnerID, ledger.PaymentInput{
			CustomerID:  body.CustomerID,
			Amount:      body.Amount,
			Description: validators.SanitizeString(body.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newLedgerEntryView(*entry, places))
	}
}

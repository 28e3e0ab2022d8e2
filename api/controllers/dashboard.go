package controllers

import (
	"net/http"

	"github.com/khatabill/khatabill-backend/api/responses"
	"github.com/khatabill/khatabill-backend/internal/dashboard"
	"github.com/khatabill/khatabill-backend/internal/tax"
	"github.com/khatabill/khatabill-backend/pkg/logger"
)

func DashboardSummary(svc dashboard.Service, places int32, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("dashboard service"))
			return
		}
		shopOwnerID, err := shopOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), shopOwnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary.TotalSales = tax.Round(summary.TotalSales, places)
		summary.SalesToday = tax.Round(summary.SalesToday, places)
		summary.OutstandingCredit = tax.Round(summary.OutstandingCredit, places)
		responses.WriteSuccess(w, summary)
	}
}

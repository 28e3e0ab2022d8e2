package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/khatabill/khatabill-backend/api/middleware"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

func shopOwnerFromRequest(r *http.Request) (uuid.UUID, error) {
	shopOwnerID := middleware.ShopOwnerIDFromContext(r.Context())
	if shopOwnerID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop owner context missing")
	}
	return shopOwnerID, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}

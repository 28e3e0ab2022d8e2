package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/khatabill/khatabill-backend/api/responses"
	pkgAuth "github.com/khatabill/khatabill-backend/pkg/auth"
	"github.com/khatabill/khatabill-backend/pkg/config"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/logger"
)

// Auth validates a bearer token minted by the identity service and seeds the
// request context with the shop owner it is scoped to.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithShopOwnerID(r.Context(), claims.ShopOwnerID)
			if claims.UserID != uuid.Nil {
				ctx = WithUserID(ctx, claims.UserID.String())
			}

			if logg != nil {
				ctx = logg.WithShopOwnerID(ctx, claims.ShopOwnerID.String())
				if claims.UserID != uuid.Nil {
					ctx = logg.WithUserID(ctx, claims.UserID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

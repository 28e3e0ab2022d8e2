package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrMissingShopOwner = errors.New("token missing shop_owner_id")

// AccessTokenPayload is what local tooling supplies when minting a token.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	ShopOwnerID uuid.UUID
	JTI         string
}

// AccessTokenClaims is the token issued by the identity service.
// ShopOwnerID is the tenant key for every billing operation.
type AccessTokenClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	ShopOwnerID uuid.UUID `json:"shop_owner_id"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c AccessTokenClaims) Validate() error {
	if c.ShopOwnerID == uuid.Nil {
		return ErrMissingShopOwner
	}
	return nil
}

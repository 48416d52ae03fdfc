package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AdminSubject is the fixed subject of admin console tokens.
const AdminSubject = "storefront-admin"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Role enums.ActorRole
	JTI  string
}

// AccessTokenClaims represents the typed JWT issued to the admin console.
type AccessTokenClaims struct {
	Role enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

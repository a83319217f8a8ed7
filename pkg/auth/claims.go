package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/siva27neelam/story-telling/pkg/enums"
)

// OperatorClaims is the JWT carried by operators calling the admin surface.
// The operator identity lives in the registered subject claim.
type OperatorClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

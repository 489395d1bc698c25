package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/mintbox/core"
)

// SessionClaims combines standard claims with the identity snapshot.
// Access and refresh tokens share the shape and differ by audience and signing secret.
type SessionClaims struct {
	jwt.RegisteredClaims
	User core.IdentitySnapshot `json:"user"`
}

package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/service"
)

const identityKey = "identity"

// SessionMiddleware admits requests carrying a valid access cookie and
// transparently renews the access cookie from the stored refresh credential.
func SessionMiddleware(authService *service.AuthService, cookies CookieConfig, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := cookie(c, CookieAccessToken); token != "" {
			if identity, err := authService.Authenticate(token); err == nil {
				c.Set(identityKey, identity)
				c.Next()
				return
			}
		}

		address := cookie(c, CookieWalletAddress)
		if address == "" {
			abortWithError(c, logger, core.ErrUnauthorized)
			return
		}

		access, identity, err := authService.RenewAccess(c.Request.Context(), address)
		if err != nil {
			abortWithError(c, logger, err)
			return
		}

		cookies.setAccess(c, access)
		c.Set(identityKey, identity)
		c.Next()
	}
}

// currentIdentity returns the identity attached by SessionMiddleware
func currentIdentity(c *gin.Context) (*core.IdentitySnapshot, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*core.IdentitySnapshot)
	return identity, ok
}

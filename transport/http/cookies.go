package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/mintbox/core"
)

const (
	CookieAccessToken   = "accessToken"
	CookieWalletAddress = "walletAddress"
)

// CookieConfig controls attributes shared by all session cookies
type CookieConfig struct {
	Secure bool
}

func (cfg CookieConfig) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) setAccess(c *gin.Context, token core.IssuedToken) {
	cfg.set(c, CookieAccessToken, token.Token, int(core.AccessTokenTTL.Seconds()))
}

func (cfg CookieConfig) setWallet(c *gin.Context, address string) {
	cfg.set(c, CookieWalletAddress, core.NormalizeAddress(address), int(core.RefreshTokenTTL.Seconds()))
}

func (cfg CookieConfig) clear(c *gin.Context) {
	cfg.set(c, CookieAccessToken, "", -1)
	cfg.set(c, CookieWalletAddress, "", -1)
}

func cookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

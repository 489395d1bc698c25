package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cookies     CookieConfig
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookies CookieConfig, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// GenerateNonce issues a login challenge for a wallet
func (h *AuthHandlers) GenerateNonce(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or missing wallet address"})
		return
	}

	nonce, err := h.authService.RequestNonce(c.Request.Context(), req.WalletAddress)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	if cookie(c, CookieWalletAddress) != "" || cookie(c, CookieAccessToken) != "" {
		abortWithError(c, h.logger, core.ErrAlreadyLoggedIn)
		return
	}

	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid wallet address or signature"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.setAccess(c, result.Access)
	h.cookies.setWallet(c, result.Identity.WalletAddress)

	c.JSON(http.StatusOK, gin.H{
		"message": "User logged in successfully",
		"user":    result.Identity,
	})
}

// Refresh rotates the refresh credential and reissues the session cookies
func (h *AuthHandlers) Refresh(c *gin.Context) {
	address := cookie(c, CookieWalletAddress)
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing session cookies"})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), address)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.setAccess(c, result.Access)
	h.cookies.setWallet(c, result.Identity.WalletAddress)

	c.JSON(http.StatusOK, gin.H{"message": "Session refreshed"})
}

// Logout revokes the session and clears the cookies
func (h *AuthHandlers) Logout(c *gin.Context) {
	address := cookie(c, CookieWalletAddress)
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing session cookies"})
		return
	}

	h.cookies.clear(c)

	if _, err := h.authService.Logout(c.Request.Context(), address); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

// Me returns the identity of the current session
func (h *AuthHandlers) Me(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": identity})
}

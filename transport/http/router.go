package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/service"
)

// RouterConfig carries the services and settings the router wires together
type RouterConfig struct {
	Auth    *service.AuthService
	Users   *service.UserService
	NFTs    *service.NFTService
	Cookies CookieConfig
	Metrics *Metrics
	Logger  zerolog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(recoverPanic(cfg.Logger)), RequestLogger(cfg.Logger))
	router.MaxMultipartMemory = 16 << 20

	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", cfg.Metrics.Handler())
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	// Create handlers
	authHandlers := NewAuthHandlers(cfg.Auth, cfg.Cookies, cfg.Logger)
	userHandlers := NewUserHandlers(cfg.Users, cfg.Logger)
	nftHandlers := NewNFTHandlers(cfg.NFTs, cfg.Logger)
	session := SessionMiddleware(cfg.Auth, cfg.Cookies, cfg.Logger)

	// Auth routes
	auth := router.Group("/api/auth")
	{
		auth.POST("/generate-nonce", authHandlers.GenerateNonce)
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", authHandlers.Logout)
		auth.POST("/refresh", authHandlers.Refresh)
		auth.GET("/me", session, authHandlers.Me)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(session)
	{
		api.PUT("/users/:id", userHandlers.Update)
		api.POST("/NFTs/create-nft", nftHandlers.Create)
		api.GET("/NFTs/mine", nftHandlers.Mine)
		api.GET("/NFTs/:id", nftHandlers.Get)
	}

	return router
}

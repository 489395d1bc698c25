package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/service"
)

type userResponse struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toUserResponse(identity *core.Identity) userResponse {
	resp := userResponse{}
	copier.Copy(&resp, identity)
	resp.WalletAddress = identity.Address
	return resp
}

// UserHandlers contains HTTP handlers for profile endpoints
type UserHandlers struct {
	userService *service.UserService
	logger      zerolog.Logger
}

// NewUserHandlers creates new user handlers
func NewUserHandlers(userService *service.UserService, logger zerolog.Logger) *UserHandlers {
	return &UserHandlers{userService: userService, logger: logger}
}

// Update changes the caller's username and/or email
func (h *UserHandlers) Update(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), *identity, c.Param("id"), core.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(updated))
}

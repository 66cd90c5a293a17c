package httpserver

import (
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/user"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name      string           `json:"name" binding:"required"`
	Email     string           `json:"email" binding:"required"`
	Password  string           `json:"password" binding:"required"`
	Addresses []domain.Address `json:"addresses"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Addresses: req.Addresses,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

func (h *handlers) me(c *gin.Context) {
	claims := resolution(c).Claims
	if claims == nil {
		abortMessage(c, http.StatusUnauthorized, "authentication required")
		return
	}
	u, err := h.users.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

package httpserver

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service/order"

	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	ShippingAddress *domain.Address `json:"shippingAddress"`
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// createOrder treats an empty body as an order without a shipping address.
func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	view, err := h.orders.Create(c.Request.Context(), resolution(c).Owner, order.CreateInput{
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *handlers) listOrders(c *gin.Context) {
	views, err := h.orders.ListForOwner(c.Request.Context(), resolution(c).Owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// getOrder lets admins read any order; other callers see only their own.
func (h *handlers) getOrder(c *gin.Context) {
	res := resolution(c)
	var (
		view *domain.OrderView
		err  error
	)
	if res.IsAdmin() {
		view, err = h.orders.Get(c.Request.Context(), c.Param("id"))
	} else {
		view, err = h.orders.GetForOwner(c.Request.Context(), res.Owner, c.Param("id"))
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

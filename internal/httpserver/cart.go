package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=10000"`
}

type removeItemRequest struct {
	ProductID string `json:"productId"`
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.carts.AddItem(c.Request.Context(), resolution(c).Owner, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) getCart(c *gin.Context) {
	view, err := h.carts.Get(c.Request.Context(), resolution(c).Owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.carts.UpdateItem(c.Request.Context(), resolution(c).Owner, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// removeCartItem accepts the product id as a JSON body or a productId query
// parameter, since some clients drop bodies on DELETE.
func (h *handlers) removeCartItem(c *gin.Context) {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" && c.Request.ContentLength != 0 {
		var req removeItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		productID = strings.TrimSpace(req.ProductID)
	}
	if productID == "" {
		abortMessage(c, http.StatusBadRequest, "productId required")
		return
	}
	view, err := h.carts.RemoveItem(c.Request.Context(), resolution(c).Owner, productID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) clearCart(c *gin.Context) {
	view, err := h.carts.Clear(c.Request.Context(), resolution(c).Owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

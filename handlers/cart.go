package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"pharmacy-service/internal/cart"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	crt, err := h.crt.GetCart(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error fetching cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}

	c.JSON(http.StatusOK, crt)
}

func (h *Handler) AddToCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if request.ProductID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product_id value missing"})
		return
	}
	if request.Quantity < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
		return
	}

	crt, err := h.crt.AddItem(c.Request.Context(), claims.Subject, request.ProductID, request.Quantity)
	if err != nil {
		var stockErr *cart.InsufficientStockError
		switch {
		case errors.Is(err, cart.ErrProductNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		case errors.As(err, &stockErr):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":      "Insufficient stock",
				"product_id": stockErr.ProductID,
				"available":  stockErr.Available,
			})
		default:
			slog.Error("error adding item to cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item to cart"})
		}
		return
	}

	c.JSON(http.StatusOK, crt)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	// quantity zero removes the line, mirroring RemoveCartItem
	if request.Quantity == 0 {
		if err := h.crt.RemoveItem(c.Request.Context(), claims.Subject, c.Param("itemId")); err != nil {
			if errors.Is(err, cart.ErrItemNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
				return
			}
			slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove cart item"})
			return
		}
		crt, err := h.crt.GetCart(c.Request.Context(), claims.Subject)
		if err != nil {
			slog.Error("error fetching cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		c.JSON(http.StatusOK, crt)
		return
	}
	if request.Quantity < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "quantity cannot be negative"})
		return
	}

	crt, err := h.crt.UpdateItem(c.Request.Context(), claims.Subject, c.Param("itemId"), request.Quantity)
	if err != nil {
		var stockErr *cart.InsufficientStockError
		switch {
		case errors.Is(err, cart.ErrItemNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		case errors.As(err, &stockErr):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":      "Insufficient stock",
				"product_id": stockErr.ProductID,
				"available":  stockErr.Available,
			})
		default:
			slog.Error("error updating cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart item"})
		}
		return
	}

	c.JSON(http.StatusOK, crt)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.crt.RemoveItem(c.Request.Context(), claims.Subject, c.Param("itemId")); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove cart item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

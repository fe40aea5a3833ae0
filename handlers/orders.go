package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/orders"
	"pharmacy-service/internal/stores/kafka"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Checkout turns the user's cart into an order. Everything the order needs
// is validated and committed in one transaction; on any failure the cart and
// inventory are untouched.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId), slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var req orders.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErrs[0].Field() + " value missing"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	order, err := orders.PlaceOrder(c.Request.Context(), h.o, claims.Subject, req)
	if err != nil {
		var stockErr *orders.InsufficientStockError
		switch {
		case errors.Is(err, orders.ErrAddressNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		case errors.Is(err, orders.ErrEmptyCart):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		case errors.Is(err, orders.ErrPrescriptionRequired):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Prescription required for one or more items"})
		case errors.Is(err, orders.ErrPrescriptionNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
		case errors.Is(err, orders.ErrPrescriptionNotApproved):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Prescription is not approved"})
		case errors.Is(err, orders.ErrInvalidShippingMethod):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid shipping method"})
		case errors.As(err, &stockErr):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":      "Insufficient stock",
				"product_id": stockErr.ProductID,
			})
		default:
			slog.Error("error placing order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Checkout Failed"})
		}
		return
	}

	go func(o orders.Order) {
		data, err := json.Marshal(kafka.OrderCreatedEvent{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			UserID:      o.UserID,
			Total:       o.Total.StringFixed(2),
			CreatedAt:   o.CreatedAt,
		})
		if err != nil {
			slog.Error("failed to marshal OrderCreatedEvent", slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := h.k.ProduceMessage(kafka.TopicOrderCreated, []byte(o.ID), data); err != nil {
			slog.Error("failed to produce message", slog.String(logkey.ERROR, err.Error()))
		}
	}(*order)

	slog.Info("order placed", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, order.ID), slog.String(logkey.UserID, order.UserID))
	c.JSON(http.StatusCreated, order)
}

// ListOrders shows customers their own orders; admins and pharmacists see
// every order and can filter by status.
func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := pageParams(c)
	f := orders.ListFilters{
		Status: strings.ToUpper(c.Query("status")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if f.Status != "" && !orders.IsValidOrderStatus(f.Status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
		return
	}
	if !auth.IsAllowed(claims.Role, auth.RoleAdmin, auth.RolePharmacist) {
		f.UserID = claims.Subject
	}

	list, total, err := h.o.ListOrders(c.Request.Context(), f)
	if err != nil {
		slog.Error("error listing orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list, "pagination": paginationEnvelope(total, page, limit)})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	order, err := h.o.OrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error fetching order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// owner or staff only; hide existence from everyone else
	if order.UserID != claims.Subject && !auth.IsAllowed(claims.Role, auth.RoleAdmin, auth.RolePharmacist) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req orders.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	req.Status = strings.ToUpper(req.Status)
	req.PaymentStatus = strings.ToUpper(req.PaymentStatus)
	if req.Status != "" && !orders.IsValidOrderStatus(req.Status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
		return
	}
	if req.PaymentStatus != "" && !orders.IsValidPaymentStatus(req.PaymentStatus) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid payment status"})
		return
	}

	order, err := h.o.UpdateOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error updating order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Order Update Failed"})
		return
	}

	slog.Info("order updated", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, order.ID))
	c.JSON(http.StatusOK, order)
}
